//go:build cuda

package device

import "fmt"

import "gorgonia.org/cu"

func init() {
	gpuProbe = cudaProbe
}

func cudaProbe(index int) (Device, error) {
	devices, err := cu.NumDevices()
	if err != nil {
		return Device{}, err
	}
	if index >= devices {
		return Device{}, fmt.Errorf("cuda device %d not found (%d present)", index, devices)
	}
	name, err := cu.Device(index).Name()
	if err != nil {
		return Device{}, err
	}
	memory, err := cu.Device(index).TotalMem()
	if err != nil {
		return Device{}, err
	}
	return Device{Kind: GPU, Index: index, Name: name, Memory: memory}, nil
}
