package gorough

import "errors"

// A Roughtime timestamp is a uint64 whose upper 24 bits hold a Modified
// Julian Day count and whose lower 40 bits count UTC microseconds since
// midnight on that day. MJD 40587 is 1 January 1970.
const (
	mjdUnixEpoch = 40587

	usPerSec = uint64(1000000)
	usPerDay = 86400 * usPerSec

	microsOfDayMask = uint64(1)<<40 - 1
)

var ErrTimestampRange = errors.New("timestamp: outside representable range")

// EpochMicroseconds converts a raw MJD/microsecond timestamp to Unix
// epoch microseconds, projected forward by half the measured round trip
// on the assumption of a symmetric network path. All arithmetic is
// 64-bit and range checked; a timestamp that would underflow (pre-1970)
// or overflow is an error, never a silent wrap.
func EpochMicroseconds(raw, roundTripUs uint64) (uint64, error) {
	days := raw >> 40
	if days < mjdUnixEpoch {
		return 0, ErrTimestampRange
	}
	// days fits in 24 bits, so the multiply stays far below 2^63.
	us := (days - mjdUnixEpoch) * usPerDay
	us += raw & microsOfDayMask

	out := us + roundTripUs/2
	if out < us {
		return 0, ErrTimestampRange
	}
	return out, nil
}

// EpochSeconds is EpochMicroseconds truncated to whole seconds.
func EpochSeconds(raw, roundTripUs uint64) (uint64, error) {
	us, err := EpochMicroseconds(raw, roundTripUs)
	if err != nil {
		return 0, err
	}
	return us / usPerSec, nil
}
