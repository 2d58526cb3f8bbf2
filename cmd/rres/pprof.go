package main

import "os"
import "runtime/pprof"

import "github.com/pkg/errors"

// startProfile collects a cpu profile into name, usable as default.pgo for a
// profile guided build. The returned func stops it.
func startProfile(name string) (func(), error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "create profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "start profile")
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
