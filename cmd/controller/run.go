package main

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/erkko68/xarxes/internal/config"
	"github.com/erkko68/xarxes/internal/dataplane"
	"github.com/erkko68/xarxes/internal/discovery"
	"github.com/erkko68/xarxes/internal/liveness"
	"github.com/erkko68/xarxes/internal/metrics"
	"github.com/erkko68/xarxes/internal/session"
	"github.com/erkko68/xarxes/internal/subscribe"
	"github.com/erkko68/xarxes/internal/tcpio"
)

// currentSession lets the long-lived shell goroutine reach whichever
// DisconnectSignal belongs to the subscription cycle in progress.
type currentSession struct {
	mu   sync.Mutex
	disc *session.DisconnectSignal
}

func (c *currentSession) set(d *session.DisconnectSignal) {
	c.mu.Lock()
	c.disc = d
	c.mu.Unlock()
}

func (c *currentSession) get() *session.DisconnectSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disc
}

// run loads configuration, then repeatedly drives the subscribe ->
// liveness -> data plane cycle until ctx is cancelled or the subscription
// engine exhausts its retry budget. Returns the process exit code.
func run(ctx context.Context, cancel context.CancelFunc, cfg *appConfig, l *slog.Logger) int {
	cc, err := config.Load(cfg.configPath)
	if err != nil {
		l.Error("config_load_failed", "error", err)
		return -1
	}

	ctrl := session.New(cc.Identity, cc.Elements)

	metrics.InitBuildInfo(version, commit, date)
	metrics.SetReadinessFunc(func() bool { return ctrl.Status() == session.SendHello })
	if cfg.metricsAddr != "" {
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		l.Error("udp_listen_failed", "error", err)
		return -1
	}
	defer udpConn.Close()

	cur := &currentSession{}
	go runShell(ctx, ctrl, cur.get, cancel)

	for {
		if ctx.Err() != nil {
			return 0
		}

		l.Info("subscribe_starting")
		if err := subscribe.Run(udpConn, ctrl, subscribe.DefaultParams); err != nil {
			l.Error("subscribe_failed", "error", err)
			return -1
		}

		disc := session.NewDisconnectSignal()
		cur.set(disc)

		listenerCh := make(chan *tcpio.Listener, 1)
		go liveness.RunReceiver(udpConn, ctrl, disc, ctrl.Identity.LocalTCP, listenerCh, liveness.DefaultParams)
		go liveness.RunSender(udpConn, ctrl, disc, liveness.DefaultParams)

		var listener *tcpio.Listener
		select {
		case listener = <-listenerCh:
		case <-ctx.Done():
			disc.Raise()
			return 0
		}
		if listener == nil {
			l.Warn("hello_handshake_failed_retrying")
			continue
		}

		mdnsCleanup := advertiseIfEnabled(ctx, cfg, ctrl, l)

		serveUntilDisconnected(ctx, listener, ctrl, disc, l)

		if mdnsCleanup != nil {
			mdnsCleanup()
		}
		listener.Close()

		if ctx.Err() != nil {
			return 0
		}
		l.Warn("disconnected_resubscribing")
	}
}

// serveUntilDisconnected accepts data-plane connections one at a time
// until disc is raised or ctx is cancelled. AcceptOne blocks with no
// timeout of its own, so a watcher closes the listener on either signal
// to unblock it rather than waiting for the next inbound connection.
func serveUntilDisconnected(ctx context.Context, listener *tcpio.Listener, ctrl *session.Controller, disc *session.DisconnectSignal, l *slog.Logger) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-disc.C():
		case <-ctx.Done():
		case <-stop:
			return
		}
		_ = listener.Close()
	}()

	for {
		select {
		case <-disc.C():
			return
		case <-ctx.Done():
			disc.Raise()
			return
		default:
		}
		dataplane.ServeOne(listener, ctrl, disc)
	}
}

func advertiseIfEnabled(ctx context.Context, cfg *appConfig, ctrl *session.Controller, l *slog.Logger) func() {
	if !cfg.mdnsEnable {
		return nil
	}
	meta := []string{
		"name=" + ctrl.Identity.Name,
		"situation=" + ctrl.Identity.Situation,
		"mac=" + ctrl.Identity.MAC,
	}
	cleanup, err := discovery.Advertise(ctx, cfg.mdnsName, ctrl.Identity.LocalTCP, meta)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return nil
	}
	l.Info("mdns_started", "service", discovery.ServiceType, "port", ctrl.Identity.LocalTCP)
	return cleanup
}
