package gorough

import (
	"encoding/binary"
	"errors"
)

// Tag is a Roughtime message tag: four ASCII bytes read as a
// little-endian uint32. Short tags are NUL padded.
type Tag uint32

const (
	TagPAD  Tag = 'P' | 'A'<<8 | 'D'<<16
	TagSIG  Tag = 'S' | 'I'<<8 | 'G'<<16
	TagVER  Tag = 'V' | 'E'<<8 | 'R'<<16
	TagNONC Tag = 'N' | 'O'<<8 | 'N'<<16 | 'C'<<24
	TagDELE Tag = 'D' | 'E'<<8 | 'L'<<16 | 'E'<<24
	TagPATH Tag = 'P' | 'A'<<8 | 'T'<<16 | 'H'<<24
	TagRADI Tag = 'R' | 'A'<<8 | 'D'<<16 | 'I'<<24
	TagPUBK Tag = 'P' | 'U'<<8 | 'B'<<16 | 'K'<<24
	TagMIDP Tag = 'M' | 'I'<<8 | 'D'<<16 | 'P'<<24
	TagSREP Tag = 'S' | 'R'<<8 | 'E'<<16 | 'P'<<24
	TagMINT Tag = 'M' | 'I'<<8 | 'N'<<16 | 'T'<<24
	TagROOT Tag = 'R' | 'O'<<8 | 'O'<<16 | 'T'<<24
	TagCERT Tag = 'C' | 'E'<<8 | 'R'<<16 | 'T'<<24
	TagMAXT Tag = 'M' | 'A'<<8 | 'X'<<16 | 'T'<<24
	TagINDX Tag = 'I' | 'N'<<8 | 'D'<<16 | 'X'<<24
)

func (t Tag) String() string {
	b := []byte{byte(t), byte(t >> 8), byte(t >> 16), byte(t >> 24)}
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

var (
	ErrTruncatedBuffer  = errors.New("wire: truncated buffer")
	ErrBadTagOrder      = errors.New("wire: tags out of order or duplicated")
	ErrOffsetOutOfRange = errors.New("wire: value offset out of range")
	ErrIntegerOverflow  = errors.New("wire: integer overflow in header")
)

// Message is a decoded view of a Roughtime tagged map. Values borrow
// from the buffer handed to ParseMessage; no copies are made.
type Message struct {
	raw  []byte
	tags []Tag
	vals [][]byte
}

// ParseMessage decodes a tagged map:
//
//	uint32 count N
//	N-1 uint32 value end offsets, each a multiple of 4, non-decreasing
//	N uint32 tags, strictly ascending
//	value blob
//
// Offsets index into the value blob, so a value's length is the gap to
// the next offset. Every length and offset is validated against the
// supplied buffer before any value is sliced out.
func ParseMessage(buf []byte) (*Message, error) {
	if len(buf) < 4 {
		return nil, ErrTruncatedBuffer
	}
	n := binary.LittleEndian.Uint32(buf)
	if n == 0 {
		return nil, ErrTruncatedBuffer
	}
	// 8 bytes of table per entry: count/offset word plus tag word. The
	// count is attacker supplied, so the multiply is range checked
	// before it can wrap on 32 bit targets.
	if n >= 1<<29 {
		return nil, ErrIntegerOverflow
	}
	hdr := int(n) * 8
	if hdr > len(buf) {
		return nil, ErrTruncatedBuffer
	}

	vals := buf[hdr:]
	offTable := buf[4 : 4+(n-1)*4]
	tagTable := buf[4+(n-1)*4 : hdr]

	m := &Message{
		raw:  buf,
		tags: make([]Tag, 0, n),
		vals: make([][]byte, 0, n),
	}

	var prevTag Tag
	var start uint32
	for i := uint32(0); i < n; i++ {
		tag := Tag(binary.LittleEndian.Uint32(tagTable[i*4:]))
		if i > 0 && tag <= prevTag {
			return nil, ErrBadTagOrder
		}
		prevTag = tag

		end := uint32(len(vals))
		if i < n-1 {
			end = binary.LittleEndian.Uint32(offTable[i*4:])
			if end%4 != 0 || end < start || end > uint32(len(vals)) {
				return nil, ErrOffsetOutOfRange
			}
		}
		if end < start {
			return nil, ErrOffsetOutOfRange
		}
		m.tags = append(m.tags, tag)
		m.vals = append(m.vals, vals[start:end])
		start = end
	}
	return m, nil
}

// Bytes returns the encoded form the message was parsed from.
func (m *Message) Bytes() []byte { return m.raw }

func (m *Message) Has(tag Tag) bool {
	_, ok := m.Value(tag)
	return ok
}

// Value returns the raw bytes for tag. Tags are ascending so a linear
// scan can stop early.
func (m *Message) Value(tag Tag) ([]byte, bool) {
	for i, t := range m.tags {
		if t == tag {
			return m.vals[i], true
		}
		if t > tag {
			break
		}
	}
	return nil, false
}

// Fixed returns the value for tag, requiring it to be exactly n bytes.
func (m *Message) Fixed(tag Tag, n int) ([]byte, error) {
	v, ok := m.Value(tag)
	if !ok {
		return nil, ErrTruncatedBuffer
	}
	if len(v) != n {
		return nil, ErrOffsetOutOfRange
	}
	return v, nil
}

func (m *Message) Uint32(tag Tag) (uint32, error) {
	v, err := m.Fixed(tag, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (m *Message) Uint64(tag Tag) (uint64, error) {
	v, err := m.Fixed(tag, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

var (
	errBuilderOrder = errors.New("wire: builder tags must be added in ascending order")
	errBuilderAlign = errors.New("wire: value length must be a multiple of 4")
)

// MessageBuilder assembles an encoded tagged map. Tags must be added in
// ascending order; all but the final value must be 4-byte aligned so the
// offset table stays valid.
type MessageBuilder struct {
	tags []Tag
	vals [][]byte
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

func (b *MessageBuilder) Add(tag Tag, val []byte) error {
	if n := len(b.tags); n > 0 && tag <= b.tags[n-1] {
		return errBuilderOrder
	}
	if len(val)%4 != 0 {
		return errBuilderAlign
	}
	b.tags = append(b.tags, tag)
	b.vals = append(b.vals, val)
	return nil
}

// headerLen is the encoded size of the count, offset and tag tables for
// n entries.
func headerLen(n int) int { return 8 * n }

func (b *MessageBuilder) Finish() []byte {
	n := len(b.tags)
	size := headerLen(n)
	for _, v := range b.vals {
		size += len(v)
	}
	out := make([]byte, size)
	binary.LittleEndian.PutUint32(out, uint32(n))

	off := uint32(0)
	for i := 0; i < n-1; i++ {
		off += uint32(len(b.vals[i]))
		binary.LittleEndian.PutUint32(out[4+i*4:], off)
	}
	for i, t := range b.tags {
		binary.LittleEndian.PutUint32(out[4+(n-1)*4+i*4:], uint32(t))
	}
	p := out[headerLen(n):]
	for _, v := range b.vals {
		copy(p, v)
		p = p[len(v):]
	}
	return out
}
