// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for retry timers.
//
// Code that waits on a timer takes a [Clock] instead of calling
// time.After. Production passes [Real]. Tests pass a [FakeClock], which
// fires timers only when Advance moves it past their deadline:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	host := peer.NewHost(peer.HostConfig{Clock: fake /* ... */})
//	fake.WaitForTimers(1)       // the host is waiting to retry
//	fake.Advance(time.Second)   // the retry fires now
//
// WaitForTimers closes the race between a goroutine arming a timer and
// the test advancing the clock.
package clock
