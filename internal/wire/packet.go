// Package wire implements the fixed-width PDU_UDP and PDU_TCP packet
// formats of the controller protocol: encoding, decoding and the packet
// type registry. Stateless and safe for concurrent use.
package wire

import "fmt"

// PacketType identifies the kind of PDU carried on the wire.
type PacketType uint8

// UDP packet types (subscription handshake + HELLO liveness).
const (
	SubsReq   PacketType = 0x00
	SubsAck   PacketType = 0x01
	SubsRej   PacketType = 0x02
	SubsInfo  PacketType = 0x03
	InfoAck   PacketType = 0x04
	SubsNack  PacketType = 0x05
	Hello     PacketType = 0x10
	HelloRej  PacketType = 0x11
)

// TCP packet types (data plane).
const (
	SendData PacketType = 0x20
	SetData  PacketType = 0x21
	GetData  PacketType = 0x22
	DataAck  PacketType = 0x23
	DataNack PacketType = 0x24
	DataRej  PacketType = 0x25
)

var names = map[PacketType]string{
	SubsReq:  "SUBS_REQ",
	SubsAck:  "SUBS_ACK",
	SubsRej:  "SUBS_REJ",
	SubsInfo: "SUBS_INFO",
	InfoAck:  "INFO_ACK",
	SubsNack: "SUBS_NACK",
	Hello:    "HELLO",
	HelloRej: "HELLO_REJ",
	SendData: "SEND_DATA",
	SetData:  "SET_DATA",
	GetData:  "GET_DATA",
	DataAck:  "DATA_ACK",
	DataNack: "DATA_NACK",
	DataRej:  "DATA_REJ",
}

// String renders a packet type for logging; unknown values print their hex code.
func (t PacketType) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
}

// Wire widths.
const (
	UDPPacketSize = 103
	TCPPacketSize = 118

	macFieldWidth    = 13
	rndFieldWidth    = 9
	udpDataWidth     = 80
	deviceFieldWidth = 8
	valueFieldWidth  = 7
	infoFieldWidth   = 80
)

// UDPPacket is the decoded form of a PDU_UDP datagram.
type UDPPacket struct {
	Type PacketType
	MAC  string
	RND  string
	Data string
}

// TCPPacket is the decoded form of a PDU_TCP segment.
type TCPPacket struct {
	Type   PacketType
	MAC    string
	RND    string
	Device string
	Value  string
	Info   string
}
