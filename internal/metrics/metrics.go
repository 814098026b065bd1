// Package metrics exposes the controller's Prometheus counters and gauges
// and a /metrics + /ready HTTP endpoint.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/erkko68/xarxes/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	SubsReqTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_subs_req_total",
		Help: "Total SUBS_REQ datagrams sent.",
	})
	SubsAckTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_subs_ack_total",
		Help: "Total SUBS_ACK datagrams received.",
	})
	SubsRejTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_subs_rej_total",
		Help: "Total SUBS_REJ datagrams received, including unrecognised packets treated as one.",
	})
	SubsNackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_subs_nack_total",
		Help: "Total SUBS_NACK datagrams received.",
	})
	SubsAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_subs_attempts_total",
		Help: "Total subscription attempts started.",
	})
	HelloSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_hello_sent_total",
		Help: "Total HELLO datagrams sent.",
	})
	HelloMissedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_hello_missed_total",
		Help: "Total HELLO receive timeouts observed.",
	})
	HelloRejTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_hello_rej_total",
		Help: "Total HELLO_REJ datagrams sent or received.",
	})
	DataAckTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_data_ack_total",
		Help: "Total DATA_ACK replies exchanged, either role.",
	})
	DataNackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_data_nack_total",
		Help: "Total DATA_NACK replies exchanged, either role.",
	})
	DataRejTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_data_rej_total",
		Help: "Total DATA_REJ replies exchanged, either role.",
	})
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controller_disconnects_total",
		Help: "Total times the disconnection signal has been raised.",
	})
	ControllerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "controller_status",
		Help: "Current protocol status; 1 for the active status label, 0 for the rest.",
	}, []string{"status"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controller_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrUDPSend  = "udp_send"
	ErrUDPRecv  = "udp_recv"
	ErrTCPBind  = "tcp_bind"
	ErrTCPSend  = "tcp_send"
	ErrTCPRecv  = "tcp_recv"
	ErrConfig   = "config"
	ErrProtocol = "protocol"
)

// All status label values, used to zero every series but the active one.
var statusLabels = []string{
	"DISCONNECTED", "NOT_SUBSCRIBED", "WAIT_ACK_SUBS", "WAIT_INFO",
	"WAIT_ACK_INFO", "SUBSCRIBED", "SEND_HELLO",
}

// StartHTTP serves Prometheus metrics and a readiness probe at addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap status-line logging without
// round-tripping through the Prometheus registry.
var (
	localSubsAttempts uint64
	localHelloMissed  uint64
	localDisconnects  uint64
	localErrors       uint64
)

// Snapshot is a cheap copy of the locally mirrored counters.
type Snapshot struct {
	SubsAttempts uint64
	HelloMissed  uint64
	Disconnects  uint64
	Errors       uint64
}

// Snap returns the current Snapshot.
func Snap() Snapshot {
	return Snapshot{
		SubsAttempts: atomic.LoadUint64(&localSubsAttempts),
		HelloMissed:  atomic.LoadUint64(&localHelloMissed),
		Disconnects:  atomic.LoadUint64(&localDisconnects),
		Errors:       atomic.LoadUint64(&localErrors),
	}
}

func IncSubsReq()  { SubsReqTotal.Inc() }
func IncSubsAck()  { SubsAckTotal.Inc() }
func IncSubsRej()  { SubsRejTotal.Inc() }
func IncSubsNack() { SubsNackTotal.Inc() }

func IncSubsAttempts() {
	SubsAttemptsTotal.Inc()
	atomic.AddUint64(&localSubsAttempts, 1)
}

func IncHelloSent() { HelloSentTotal.Inc() }

func IncHelloMissed() {
	HelloMissedTotal.Inc()
	atomic.AddUint64(&localHelloMissed, 1)
}

func IncHelloRej() { HelloRejTotal.Inc() }
func IncDataAck()  { DataAckTotal.Inc() }
func IncDataNack() { DataNackTotal.Inc() }
func IncDataRej()  { DataRejTotal.Inc() }

func IncDisconnects() {
	DisconnectsTotal.Inc()
	atomic.AddUint64(&localDisconnects, 1)
}

// SetStatus zeroes every status label and sets name to 1, so the gauge
// vector always shows exactly one active time series.
func SetStatus(name string) {
	for _, n := range statusLabels {
		ControllerStatus.WithLabelValues(n).Set(0)
	}
	ControllerStatus.WithLabelValues(name).Set(1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration cost.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrUDPSend, ErrUDPRecv, ErrTCPBind, ErrTCPSend, ErrTCPRecv, ErrConfig, ErrProtocol} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, n := range statusLabels {
		ControllerStatus.WithLabelValues(n).Set(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady invokes the registered readiness function if present, defaulting
// to true so the metrics endpoint doesn't flap before one is installed.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
