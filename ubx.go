package gorough

import (
	"encoding/binary"
	"time"
)

// u-blox UBX framing: 0xB5 0x62, class, id, little-endian 16 bit
// payload length, payload, two Fletcher checksum bytes computed over
// class through payload.
const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	// ubxMaxPayload caps the declared payload length before any
	// buffering happens. NAV class frames are well under this; a
	// corrupt length byte must not drive allocation.
	ubxMaxPayload = 1024

	ubxClassNav  = 0x01
	ubxIDNavPVT  = 0x07
	ubxHeaderLen = 6
)

// NAV-PVT validity flags.
const (
	ubxValidDate = 0x01
	ubxValidTime = 0x02

	ubxValidDateTime = ubxValidDate | ubxValidTime
)

type ubxFrame struct {
	class   byte
	id      byte
	payload []byte
}

// ubxScanner is a byte-at-a-time frame synchronizer. Garbage between
// frames and checksum failures drop data silently; the scanner resyncs
// on the next 0xB5 0x62.
type ubxScanner struct {
	state   int
	class   byte
	id      byte
	length  int
	payload []byte
	ckA     byte
	ckB     byte
}

const (
	ubxExpectSync1 = iota
	ubxExpectSync2
	ubxExpectClass
	ubxExpectID
	ubxExpectLen1
	ubxExpectLen2
	ubxExpectPayload
	ubxExpectCkA
	ubxExpectCkB
)

func (s *ubxScanner) reset() {
	s.state = ubxExpectSync1
	s.payload = s.payload[:0]
	s.ckA, s.ckB = 0, 0
}

func (s *ubxScanner) sum(b byte) {
	s.ckA += b
	s.ckB += s.ckA
}

// feed consumes one byte and returns a complete, checksum-verified
// frame when one ends on this byte.
func (s *ubxScanner) feed(b byte) (ubxFrame, bool) {
	switch s.state {
	case ubxExpectSync1:
		if b == ubxSync1 {
			s.state = ubxExpectSync2
		}
	case ubxExpectSync2:
		if b == ubxSync2 {
			s.state = ubxExpectClass
		} else {
			s.reset()
		}
	case ubxExpectClass:
		s.class = b
		s.sum(b)
		s.state = ubxExpectID
	case ubxExpectID:
		s.id = b
		s.sum(b)
		s.state = ubxExpectLen1
	case ubxExpectLen1:
		s.length = int(b)
		s.sum(b)
		s.state = ubxExpectLen2
	case ubxExpectLen2:
		s.length |= int(b) << 8
		s.sum(b)
		if s.length > ubxMaxPayload {
			s.reset()
			break
		}
		if s.length == 0 {
			s.state = ubxExpectCkA
		} else {
			s.state = ubxExpectPayload
		}
	case ubxExpectPayload:
		s.payload = append(s.payload, b)
		s.sum(b)
		if len(s.payload) == s.length {
			s.state = ubxExpectCkA
		}
	case ubxExpectCkA:
		if b != s.ckA {
			s.reset()
			break
		}
		s.state = ubxExpectCkB
	case ubxExpectCkB:
		ok := b == s.ckB
		f := ubxFrame{class: s.class, id: s.id, payload: s.payload}
		s.payload = nil
		s.reset()
		if ok {
			return f, true
		}
	}
	return ubxFrame{}, false
}

// decodeNavPVT extracts the time solution from a UBX-NAV-PVT payload
// (84 bytes on u-blox 6/7, 92 on 8/9). The packet carries a UTC civil
// date plus a signed nanosecond remainder that can be negative.
func decodeNavPVT(p []byte, arrivalUs uint64) (Fix, bool) {
	if len(p) < 84 {
		return Fix{}, false
	}
	valid := p[11]
	fixType := p[20]

	f := Fix{
		Mode:      fixType,
		Lon:       1e-7 * float64(int32(binary.LittleEndian.Uint32(p[24:]))),
		Lat:       1e-7 * float64(int32(binary.LittleEndian.Uint32(p[28:]))),
		ArrivalUs: arrivalUs,
	}
	if valid&ubxValidDateTime != ubxValidDateTime {
		return f, true
	}

	sec := time.Date(
		int(binary.LittleEndian.Uint16(p[4:])),
		time.Month(p[6]), int(p[7]),
		int(p[8]), int(p[9]), int(p[10]),
		0, time.UTC,
	).Unix()
	nsec := int64(int32(binary.LittleEndian.Uint32(p[16:])))
	for nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}

	f.Valid = true
	f.Sec = sec
	f.Nsec = nsec
	return f, true
}
