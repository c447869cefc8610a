package gorough

import "golang.org/x/sys/unix"

func clockUs(clockid int32) uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(clockid, &ts); err != nil {
		// clock_gettime on a valid clock id cannot fail
		panic(err)
	}
	return uint64(ts.Sec)*usPerSec + uint64(ts.Nsec)/1000
}

// monotonicUs reads the monotonic clock in microseconds. Round trips
// are measured on it so wall clock steps cannot skew them.
func monotonicUs() uint64 { return clockUs(unix.CLOCK_MONOTONIC) }

// realtimeUs reads the system wall clock in microseconds since the
// epoch.
func realtimeUs() uint64 { return clockUs(unix.CLOCK_REALTIME) }
