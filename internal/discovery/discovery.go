// Package discovery advertises the controller's TCP data endpoint via mDNS
// once it has reached SEND_HELLO, so local tooling can find a live
// controller without reading its config file.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type advertised for a subscribed
// controller's TCP data endpoint.
const ServiceType = "_xarxes-ctrl._tcp"

// Advertise registers instance (or a hostname-derived default) under
// ServiceType on tcpPort, returning a cleanup function. Advertisement is
// best-effort: a registration failure is logged by the caller and must not
// be treated as fatal, since the controller functions fully without it.
func Advertise(ctx context.Context, instance string, tcpPort int, meta []string) (func(), error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("xarxes-ctrl-%s", host)
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", tcpPort, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
