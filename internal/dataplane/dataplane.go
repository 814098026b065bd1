// Package dataplane implements the controller's TCP data request/response
// exchanges: handling inbound SET_DATA/GET_DATA on the SEND_HELLO listener,
// and issuing outbound SEND_DATA on an operator's `send` command.
package dataplane

import (
	"net"
	"time"

	"github.com/erkko68/xarxes/internal/identity"
	"github.com/erkko68/xarxes/internal/metrics"
	"github.com/erkko68/xarxes/internal/session"
	"github.com/erkko68/xarxes/internal/tcpio"
	"github.com/erkko68/xarxes/internal/wire"
)

// ServeOne accepts one connection from l, handles exactly one request, and
// closes the connection. On a fatal protocol violation (credential
// mismatch, unrecognised packet type) it invalidates the session.
func ServeOne(l *tcpio.Listener, ctrl *session.Controller, disc *session.DisconnectSignal) {
	log := ctrl.Logger
	conn, addr, err := l.AcceptOne()
	if err != nil {
		log.Warn("dataplane_accept_failed", "error", err)
		return
	}
	defer conn.Close()

	pkt, err := tcpio.Recv(conn, tcpio.DefaultRecvTimeout)
	if err != nil {
		metrics.IncError(metrics.ErrTCPRecv)
		log.Warn("dataplane_recv_failed", "error", err)
		return
	}
	if pkt == nil {
		return
	}

	binding := ctrl.Binding()
	srcIP := ""
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		srcIP = tcpAddr.IP.String()
	}

	if binding == nil || pkt.MAC != binding.ServerMAC || pkt.RND != binding.RND || srcIP != binding.ServerIP {
		log.Warn("dataplane_credential_mismatch", "from", srcIP)
		reply := wire.TCPPacket{Type: wire.DataRej, Device: pkt.Device, Value: pkt.Value, Info: "Wrong packet credentials."}
		_ = tcpio.Send(conn, reply)
		metrics.IncDataRej()
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}

	switch pkt.Type {
	case wire.SetData:
		handleSetData(conn, ctrl, *pkt)
	case wire.GetData:
		handleGetData(conn, ctrl, *pkt)
	default:
		log.Warn("dataplane_unexpected_packet", "type", pkt.Type.String())
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
	}
}

func handleSetData(conn net.Conn, ctrl *session.Controller, pkt wire.TCPPacket) {
	log := ctrl.Logger
	if !ctrl.Elements.Has(pkt.Device) {
		reply := wire.TCPPacket{Type: wire.DataNack, Device: pkt.Device, Value: pkt.Value, Info: "Received SET_DATA request for an unowned device."}
		_ = tcpio.Send(conn, reply)
		metrics.IncDataNack()
		return
	}
	if identity.IsSensor(pkt.Device) {
		reply := wire.TCPPacket{Type: wire.DataNack, Device: pkt.Device, Value: pkt.Value, Info: "Device is a sensor and can't be assigned with values."}
		_ = tcpio.Send(conn, reply)
		metrics.IncDataNack()
		return
	}
	ctrl.Elements.Set(pkt.Device, pkt.Value)
	log.Info("dataplane_set_data", "device", pkt.Device, "value", pkt.Value)
	reply := wire.TCPPacket{Type: wire.DataAck, Device: pkt.Device, Value: pkt.Value}
	_ = tcpio.Send(conn, reply)
	metrics.IncDataAck()
}

func handleGetData(conn net.Conn, ctrl *session.Controller, pkt wire.TCPPacket) {
	value, ok := ctrl.Elements.Get(pkt.Device)
	if !ok {
		reply := wire.TCPPacket{Type: wire.DataNack, Device: pkt.Device, Info: "Received GET_DATA request for an unowned device."}
		_ = tcpio.Send(conn, reply)
		metrics.IncDataNack()
		return
	}
	reply := wire.TCPPacket{Type: wire.DataAck, Device: pkt.Device, Value: value}
	_ = tcpio.Send(conn, reply)
	metrics.IncDataAck()
}

// SendDevice dials the server's bound TCP port and performs a
// controller-initiated SEND_DATA exchange for device, reporting the
// outcome via log lines. Any credential mismatch, device/value field
// mismatch, or DATA_REJ invalidates the session.
func SendDevice(ctrl *session.Controller, disc *session.DisconnectSignal, device string) {
	log := ctrl.Logger
	binding := ctrl.Binding()
	if binding == nil {
		log.Warn("send_data_no_binding")
		return
	}
	value, ok := ctrl.Elements.Get(device)
	if !ok {
		log.Warn("send_data_unowned_device", "device", device)
		return
	}

	conn, err := tcpio.Dial(ctrl.Identity.Server, binding.ServerTCPPort)
	if err != nil {
		metrics.IncError(metrics.ErrTCPSend)
		log.Warn("send_data_dial_failed", "error", err)
		return
	}
	defer conn.Close()

	req := wire.TCPPacket{Type: wire.SendData, MAC: ctrl.Identity.MAC, RND: binding.RND, Device: device, Value: value}
	if err := tcpio.Send(conn, req); err != nil {
		metrics.IncError(metrics.ErrTCPSend)
		log.Warn("send_data_send_failed", "error", err)
		return
	}

	reply, err := tcpio.Recv(conn, 3*time.Second)
	if err != nil {
		metrics.IncError(metrics.ErrTCPRecv)
		log.Warn("send_data_recv_failed", "error", err)
		return
	}
	if reply == nil {
		log.Warn("send_data_timeout", "device", device)
		return
	}
	if reply.MAC != binding.ServerMAC || reply.RND != binding.RND {
		log.Warn("send_data_credential_mismatch")
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}
	if reply.Device != device || reply.Value != value {
		log.Warn("send_data_field_mismatch", "got_device", reply.Device, "got_value", reply.Value)
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}

	switch reply.Type {
	case wire.DataAck:
		metrics.IncDataAck()
		log.Info("send_data_acked", "device", device, "value", value)
	case wire.DataNack:
		metrics.IncDataNack()
		log.Warn("send_data_nacked", "info", reply.Info)
	case wire.DataRej:
		metrics.IncDataRej()
		log.Warn("send_data_rejected", "info", reply.Info)
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
	default:
		log.Warn("send_data_unexpected_reply", "type", reply.Type.String())
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
	}
}
