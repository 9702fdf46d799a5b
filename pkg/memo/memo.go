// Package memo implements a small messaging protocol layered on the 512
// byte shielded memo field. A structured memo carries a fixed header and a
// NUL padded payload; long messages are split into fragments that share a
// nonce and are reassembled in index order. Memos without the protocol
// version byte are treated as plain text.
package memo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// Size is the wire size of a shielded memo.
	Size = 512
	// HeaderSize is the structured header length:
	// version(1) type(1) timestamp(4) nonce(4) total(2) index(2).
	HeaderSize = 14
	// PayloadSize is the usable payload per memo.
	PayloadSize = Size - HeaderSize

	// Version is the protocol version byte.
	Version = 0x01
)

// Type tags a structured memo.
type Type uint8

const (
	TypeText     Type = 0x01
	TypeAck      Type = 0x02
	TypeFragment Type = 0x03
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeAck:
		return "ack"
	case TypeFragment:
		return "fragment"
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

var (
	ErrTooLong      = errors.New("message exceeds memo capacity")
	ErrNotStructured = errors.New("memo is not a structured message")
	ErrIncomplete   = errors.New("fragment set is incomplete")
)

// Message is a decoded structured memo.
type Message struct {
	Type      Type
	Timestamp uint32
	Nonce     uint32
	// FragmentTotal and FragmentIndex are 1 and 0 for unfragmented
	// messages.
	FragmentTotal uint16
	FragmentIndex uint16
	Payload       []byte
}

// Text returns the payload as a string with trailing NUL padding removed.
func (m *Message) Text() string {
	return strings.TrimRight(string(m.Payload), "\x00")
}

func encodeOne(typ Type, timestamp, nonce uint32, total, index uint16, payload []byte) [Size]byte {
	var out [Size]byte
	out[0] = Version
	out[1] = byte(typ)
	binary.BigEndian.PutUint32(out[2:6], timestamp)
	binary.BigEndian.PutUint32(out[6:10], nonce)
	binary.BigEndian.PutUint16(out[10:12], total)
	binary.BigEndian.PutUint16(out[12:14], index)
	copy(out[HeaderSize:], payload)
	return out
}

// EncodeText encodes a text message, fragmenting it when it does not fit
// in a single memo. The nonce ties the fragments together.
func EncodeText(text string, timestamp, nonce uint32) ([][Size]byte, error) {
	data := []byte(text)
	if len(data) <= PayloadSize {
		return [][Size]byte{encodeOne(TypeText, timestamp, nonce, 1, 0, data)}, nil
	}

	total := (len(data) + PayloadSize - 1) / PayloadSize
	if total > 0xFFFF {
		return nil, ErrTooLong
	}
	memos := make([][Size]byte, 0, total)
	for i := 0; i < total; i++ {
		chunk := data[i*PayloadSize:]
		if len(chunk) > PayloadSize {
			chunk = chunk[:PayloadSize]
		}
		memos = append(memos, encodeOne(TypeFragment, timestamp, nonce, uint16(total), uint16(i), chunk))
	}
	return memos, nil
}

// EncodeAck encodes an acknowledgement of the message with the given
// nonce.
func EncodeAck(ackedNonce, timestamp, nonce uint32) [Size]byte {
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], ackedNonce)
	return encodeOne(TypeAck, timestamp, nonce, 1, 0, payload[:])
}

// Decode parses a structured memo. ErrNotStructured means the memo does
// not carry the protocol version byte; callers typically fall back to
// treating it as plain text.
func Decode(raw [Size]byte) (*Message, error) {
	if raw[0] != Version {
		return nil, ErrNotStructured
	}
	typ := Type(raw[1])
	switch typ {
	case TypeText, TypeAck, TypeFragment:
	default:
		return nil, fmt.Errorf("unknown memo type 0x%02x", raw[1])
	}

	msg := &Message{
		Type:          typ,
		Timestamp:     binary.BigEndian.Uint32(raw[2:6]),
		Nonce:         binary.BigEndian.Uint32(raw[6:10]),
		FragmentTotal: binary.BigEndian.Uint16(raw[10:12]),
		FragmentIndex: binary.BigEndian.Uint16(raw[12:14]),
		Payload:       append([]byte{}, raw[HeaderSize:]...),
	}
	if msg.FragmentTotal == 0 {
		return nil, errors.New("memo fragment total is zero")
	}
	if msg.FragmentIndex >= msg.FragmentTotal {
		return nil, fmt.Errorf("memo fragment index %d out of range (total %d)",
			msg.FragmentIndex, msg.FragmentTotal)
	}
	return msg, nil
}

// DecodeOrText decodes a memo, falling back to a plain text message when
// it is not structured. The fallback returns nil when the memo is empty or
// not valid UTF-8.
func DecodeOrText(raw [Size]byte) *Message {
	msg, err := Decode(raw)
	if err == nil {
		return msg
	}
	text := strings.TrimRight(string(raw[:]), "\x00")
	if text == "" || !utf8.ValidString(text) {
		return nil
	}
	return &Message{Type: TypeText, FragmentTotal: 1, Payload: []byte(text)}
}

// Reassemble joins fragments that share a nonce back into the full text.
// Fragments may arrive in any order; duplicates of the same index are
// tolerated. ErrIncomplete is returned until every index is present.
func Reassemble(fragments []*Message) (string, error) {
	if len(fragments) == 0 {
		return "", ErrIncomplete
	}
	if len(fragments) == 1 && fragments[0].Type != TypeFragment {
		return fragments[0].Text(), nil
	}

	nonce := fragments[0].Nonce
	total := int(fragments[0].FragmentTotal)
	byIndex := make(map[uint16]*Message, total)
	for _, f := range fragments {
		if f.Type != TypeFragment {
			return "", fmt.Errorf("mixed memo types in fragment set")
		}
		if f.Nonce != nonce {
			return "", fmt.Errorf("fragment nonce %d does not match set nonce %d", f.Nonce, nonce)
		}
		if int(f.FragmentTotal) != total {
			return "", fmt.Errorf("fragment total %d does not match set total %d", f.FragmentTotal, total)
		}
		byIndex[f.FragmentIndex] = f
	}
	if len(byIndex) < total {
		return "", ErrIncomplete
	}

	indices := make([]int, 0, total)
	for idx := range byIndex {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	var sb strings.Builder
	for i, idx := range indices {
		f := byIndex[uint16(idx)]
		if i < len(indices)-1 {
			sb.Write(f.Payload)
		} else {
			sb.WriteString(f.Text())
		}
	}
	return sb.String(), nil
}
