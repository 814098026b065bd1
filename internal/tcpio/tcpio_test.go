package tcpio

import (
	"net"
	"testing"
	"time"

	"github.com/erkko68/xarxes/internal/wire"
)

func TestListenAcceptSendRecv(t *testing.T) {
	l, err := Listen(0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	done := make(chan error, 1)
	go func() {
		conn, _, err := l.AcceptOne()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		pkt, err := Recv(conn, time.Second)
		if err != nil {
			done <- err
			return
		}
		if pkt == nil {
			done <- nil
			return
		}
		done <- Send(conn, wire.TCPPacket{Type: wire.DataAck, Device: pkt.Device, Value: pkt.Value})
	}()

	client, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	req := wire.EncodeTCP(wire.TCPPacket{Type: wire.GetData, Device: "TMP-1-O"})
	if _, err := client.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, wire.TCPPacketSize)
	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := readAll(client, buf); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	reply, err := wire.DecodeTCP(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Type != wire.DataAck || reply.Device != "TMP-1-O" {
		t.Fatalf("got %+v", reply)
	}
	if err := <-done; err != nil {
		t.Fatalf("server goroutine: %v", err)
	}
}

func TestRecvTimeout(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		pkt, err := Recv(srv, 20*time.Millisecond)
		if err != nil {
			t.Errorf("expected nil err on timeout, got %v", err)
		}
		if pkt != nil {
			t.Errorf("expected nil packet on timeout")
		}
	}()
	<-done
}

func readAll(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
