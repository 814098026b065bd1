package wire

import (
	"strings"
	"testing"
)

func TestUDPRoundTrip(t *testing.T) {
	in := UDPPacket{
		Type: SubsAck,
		MAC:  "A1B2C3D4E5F6",
		RND:  "R0000ABCD",
		Data: "11001",
	}
	out, err := DecodeUDP(EncodeUDP(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestUDPTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	in := UDPPacket{Type: SubsReq, MAC: long, RND: long, Data: long}
	out, err := DecodeUDP(EncodeUDP(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.MAC != long[:macFieldWidth-1] {
		t.Fatalf("mac truncation: got %q", out.MAC)
	}
	if out.RND != long[:rndFieldWidth-1] {
		t.Fatalf("rnd truncation: got %q", out.RND)
	}
	if out.Data != long[:udpDataWidth-1] {
		t.Fatalf("data truncation: got %q", out.Data)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	in := TCPPacket{
		Type:   DataAck,
		MAC:    "A1B2C3D4E5F6",
		RND:    "R0000ABCD",
		Device: "TMP-1-O",
		Value:  "22",
		Info:   "",
	}
	// The 9-char RND is truncated to rndFieldWidth-1 = 8 characters.
	want := in
	want.RND = "R0000ABC"
	out, err := DecodeTCP(EncodeTCP(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, want)
	}
}

func TestEncodeUDPFixedSize(t *testing.T) {
	b := EncodeUDP(UDPPacket{Type: Hello})
	if len(b) != UDPPacketSize {
		t.Fatalf("got %d bytes, want %d", len(b), UDPPacketSize)
	}
}

func TestEncodeTCPFixedSize(t *testing.T) {
	b := EncodeTCP(TCPPacket{Type: GetData})
	if len(b) != TCPPacketSize {
		t.Fatalf("got %d bytes, want %d", len(b), TCPPacketSize)
	}
}

func TestDecodeUDPShortBuffer(t *testing.T) {
	if _, err := DecodeUDP(make([]byte, 10)); err == nil {
		t.Fatalf("expected error on short buffer")
	}
}

func TestDecodeTCPShortBuffer(t *testing.T) {
	if _, err := DecodeTCP(make([]byte, 10)); err == nil {
		t.Fatalf("expected error on short buffer")
	}
}

func TestPacketTypeString(t *testing.T) {
	if SubsAck.String() != "SUBS_ACK" {
		t.Fatalf("got %q", SubsAck.String())
	}
	if got := PacketType(0x99).String(); got != "UNKNOWN(0x99)" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyStringFieldDecodesEmpty(t *testing.T) {
	out, err := DecodeUDP(EncodeUDP(UDPPacket{Type: SubsReq, MAC: "", RND: "", Data: ""}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.MAC != "" || out.RND != "" || out.Data != "" {
		t.Fatalf("expected empty fields, got %+v", out)
	}
}
