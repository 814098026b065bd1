package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a decode target buffer is smaller than the
// declared PDU size.
var ErrShortBuffer = errors.New("wire: short buffer")

// putString truncates s to width-1 bytes and right-pads with NUL to width.
func putString(buf []byte, s string, width int) {
	n := len(s)
	if n > width-1 {
		n = width - 1
	}
	copy(buf[:n], s[:n])
	for i := n; i < width; i++ {
		buf[i] = 0
	}
}

// getString reads width bytes and returns the prefix up to the first NUL
// (or the full width if no NUL is present).
func getString(buf []byte, width int) string {
	b := buf[:width]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// EncodeUDP serializes p into a 103-byte PDU_UDP datagram.
func EncodeUDP(p UDPPacket) []byte {
	buf := make([]byte, UDPPacketSize)
	buf[0] = byte(p.Type)
	putString(buf[1:1+macFieldWidth], p.MAC, macFieldWidth)
	putString(buf[14:14+rndFieldWidth], p.RND, rndFieldWidth)
	putString(buf[23:23+udpDataWidth], p.Data, udpDataWidth)
	return buf
}

// DecodeUDP parses a 103-byte PDU_UDP datagram.
func DecodeUDP(buf []byte) (UDPPacket, error) {
	if len(buf) < UDPPacketSize {
		return UDPPacket{}, fmt.Errorf("decode udp: %w (%d < %d)", ErrShortBuffer, len(buf), UDPPacketSize)
	}
	return UDPPacket{
		Type: PacketType(buf[0]),
		MAC:  getString(buf[1:1+macFieldWidth], macFieldWidth),
		RND:  getString(buf[14:14+rndFieldWidth], rndFieldWidth),
		Data: getString(buf[23:23+udpDataWidth], udpDataWidth),
	}, nil
}

// EncodeTCP serializes p into a 118-byte PDU_TCP segment.
func EncodeTCP(p TCPPacket) []byte {
	buf := make([]byte, TCPPacketSize)
	buf[0] = byte(p.Type)
	putString(buf[1:1+macFieldWidth], p.MAC, macFieldWidth)
	putString(buf[14:14+rndFieldWidth], p.RND, rndFieldWidth)
	putString(buf[23:23+deviceFieldWidth], p.Device, deviceFieldWidth)
	putString(buf[31:31+valueFieldWidth], p.Value, valueFieldWidth)
	putString(buf[38:38+infoFieldWidth], p.Info, infoFieldWidth)
	return buf
}

// DecodeTCP parses a 118-byte PDU_TCP segment.
func DecodeTCP(buf []byte) (TCPPacket, error) {
	if len(buf) < TCPPacketSize {
		return TCPPacket{}, fmt.Errorf("decode tcp: %w (%d < %d)", ErrShortBuffer, len(buf), TCPPacketSize)
	}
	return TCPPacket{
		Type:   PacketType(buf[0]),
		MAC:    getString(buf[1:1+macFieldWidth], macFieldWidth),
		RND:    getString(buf[14:14+rndFieldWidth], rndFieldWidth),
		Device: getString(buf[23:23+deviceFieldWidth], deviceFieldWidth),
		Value:  getString(buf[31:31+valueFieldWidth], valueFieldWidth),
		Info:   getString(buf[38:38+infoFieldWidth], infoFieldWidth),
	}, nil
}
