// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mcast

import "time"

// StackPreset names the stack-size presets from the original system
// (spec section 3): the closest faithful Go analogue is a mailbox capacity
// hint, since goroutine stacks are runtime-managed.
type StackPreset int

const (
	StackVerySmall StackPreset = iota + 1 // 32 KiB equivalent
	StackSmall                            // 128 KiB equivalent
	StackNormal                           // 1 MiB equivalent
	StackLarge                            // 4 MiB equivalent
	StackVeryLarge                        // 8 MiB equivalent
)

// mailboxCapacity derives a default mailbox buffer size from a stack preset.
func (p StackPreset) mailboxCapacity() int {
	switch {
	case p <= StackVerySmall:
		return 4
	case p <= StackSmall:
		return 16
	case p <= StackNormal:
		return 64
	case p <= StackLarge:
		return 256
	default:
		return 1024
	}
}

// runtimeOptions holds configuration options for Runtime creation.
type runtimeOptions struct {
	workerCount      int
	defaultStack     StackPreset
	watchdogInterval time.Duration
	watchdogFloor    time.Duration
	logger           Logger
}

// RuntimeOption configures a Runtime instance.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

// runtimeOptionImpl implements RuntimeOption.
type runtimeOptionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (o *runtimeOptionImpl) applyRuntime(opts *runtimeOptions) error {
	return o.applyRuntimeFunc(opts)
}

// WithWorkerCount sets the number of worker goroutines the scheduler uses.
// Must be >= 1; invalid values are rejected by resolveRuntimeOptions.
func WithWorkerCount(n int) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		if n < 1 {
			return NewStatus(InvalidArgument, "worker count must be >= 1")
		}
		opts.workerCount = n
		return nil
	}}
}

// WithStackPreset sets the default stack preset used by LaunchService (and
// the other Launch* methods) when no explicit preset is supplied, i.e. when
// the preset argument is the zero StackPreset.
func WithStackPreset(p StackPreset) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.defaultStack = p
		return nil
	}}
}

// WithWatchdogInterval sets the Watchdog's scan interval (spec section 4.5:
// "interval = min of all registered deadlines, floor 100ms"; this sets the
// configurable default the spec's open question asks for).
func WithWatchdogInterval(d time.Duration) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.watchdogInterval = d
		return nil
	}}
}

// WithWatchdogFloor sets the Watchdog's minimum scan interval floor.
func WithWatchdogFloor(d time.Duration) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.watchdogFloor = d
		return nil
	}}
}

// WithLogger installs a structured Logger (see logging.go), replacing the
// package default.
func WithLogger(l Logger) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.logger = l
		return nil
	}}
}

// resolveRuntimeOptions applies RuntimeOption instances to runtimeOptions.
func resolveRuntimeOptions(opts []RuntimeOption) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		workerCount:      4,
		defaultStack:     StackNormal,
		watchdogInterval: 30 * time.Second,
		watchdogFloor:    100 * time.Millisecond,
		logger:           getLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
