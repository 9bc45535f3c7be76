// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

// Option configures a CommandExecutor during creation.
//
// Example:
//
//	exec := gpusched.New(device, gpusched.WithCommandCapacity(256))
type Option func(*executorOptions)

// executorOptions holds optional configuration for New.
type executorOptions struct {
	commandCapacity int
}

// defaultOptions returns the default executor options.
func defaultOptions() executorOptions {
	return executorOptions{
		commandCapacity: 64,
	}
}

// WithCommandCapacity preallocates scheduler storage for roughly n
// commands per frame. Frames that stay under the capacity schedule
// without growing the internal graph buffers.
func WithCommandCapacity(n int) Option {
	return func(o *executorOptions) {
		if n > 0 {
			o.commandCapacity = n
		}
	}
}
