// Package rcon implements the Minecraft remote console protocol: an
// authenticated TCP protocol for sending text commands to a running
// server and receiving text responses.
package rcon

import (
	"encoding/binary"
	"errors"
)

// Packet types. Command responses arrive as typeResponse; the auth
// response shares the command type value per the protocol.
const (
	typeResponse     int32 = 0
	typeCommand      int32 = 2
	typeAuthResponse int32 = 2
	typeAuth         int32 = 3
)

// A payload plus framing overhead may not exceed this; larger declared
// lengths indicate a corrupt stream.
const maxPacketSize = 4096 + 10

// ErrProtocol reports undecodable framing on the receive stream.
var ErrProtocol = errors.New("rcon: malformed packet framing")

type packet struct {
	ID   int32
	Type int32
	Body string
}

// encode produces the wire form: little-endian int32 length (bytes
// after the length field), int32 request id, int32 type, payload, and
// two trailing NUL bytes.
func encode(p packet) []byte {
	length := 4 + 4 + len(p.Body) + 2
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(length))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Body)
	// The final two bytes stay zero: body terminator plus packet pad.
	return buf
}

// decode extracts one complete packet from buf. When fewer than the
// declared number of bytes have arrived it defers (ok false) rather
// than erroring; rest holds any bytes belonging to subsequent packets.
func decode(buf []byte) (p packet, rest []byte, ok bool, err error) {
	if len(buf) < 4 {
		return packet{}, buf, false, nil
	}
	length := int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	if length < 10 || length > maxPacketSize {
		return packet{}, buf, false, ErrProtocol
	}
	if len(buf) < 4+length {
		return packet{}, buf, false, nil
	}
	p.ID = int32(binary.LittleEndian.Uint32(buf[4:8]))
	p.Type = int32(binary.LittleEndian.Uint32(buf[8:12]))
	p.Body = string(buf[12 : 4+length-2])
	return p, buf[4+length:], true, nil
}
