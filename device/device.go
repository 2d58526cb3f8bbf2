// Package device selects the compute device a run is placed on.
package device

import "fmt"
import "runtime"

import "github.com/klauspost/cpuid/v2"
import "github.com/rs/zerolog"

type Kind string

const (
	CPU Kind = "cpu"
	GPU Kind = "gpu"
)

// Device is the placement of a run.
type Device struct {
	Kind    Kind
	Index   int
	Name    string
	Memory  int64 // bytes, GPU only
	Threads int   // host worker goroutines for batch fan-out
}

// String returns the device path, e.g. /gpu:0.
func (d Device) String() string {
	return fmt.Sprintf("/%s:%d", d.Kind, d.Index)
}

// gpuProbe returns the CUDA device at index, or an error when there is none.
// It is replaced when built with the cuda tag.
var gpuProbe = func(index int) (Device, error) {
	return Device{}, fmt.Errorf("built without cuda support")
}

// Select places the run on the CPU when numGPUs is 0 and on the first GPU when
// it is 1. A missing GPU falls back to the CPU.
func Select(numGPUs int, log zerolog.Logger) (Device, error) {
	switch numGPUs {
	case 0:
		return host(log), nil
	case 1:
		d, err := gpuProbe(0)
		if err != nil {
			log.Warn().Err(err).Msg("gpu:0 unavailable, placing on cpu:0")
			return host(log), nil
		}
		d.Threads = hostThreads()
		log.Info().Str("device", d.String()).Str("name", d.Name).Int64("memory", d.Memory).Msg("placed on gpu")
		return d, nil
	}
	return Device{}, fmt.Errorf("only support 0 or 1 gpu, got %d", numGPUs)
}

func host(log zerolog.Logger) Device {
	d := Device{
		Kind:    CPU,
		Name:    cpuid.CPU.BrandName,
		Threads: hostThreads(),
	}
	log.Info().
		Str("device", d.String()).
		Str("name", d.Name).
		Int("cores", cpuid.CPU.PhysicalCores).
		Int("threads", d.Threads).
		Bool("avx2", cpuid.CPU.Supports(cpuid.AVX2)).
		Bool("avx512", cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ)).
		Msg("placed on cpu")
	return d
}

func hostThreads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
