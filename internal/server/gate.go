package server

import (
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	detectionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capa_http_detections_in_flight",
		Help: "Detection requests currently holding a slot.",
	})
	detectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capa_http_detections_rejected_total",
			Help: "Detection requests turned away by the gate, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(detectionsInFlight, detectionsRejected)
}

// maxTrackedClients bounds the per-client bucket map before idle buckets
// are evicted.
const maxTrackedClients = 4096

// detectionGate admits requests to routes that run the solver. Each client
// address gets a token bucket, and at most a fixed number of detections run
// at once across all clients. A solve is CPU bound and holds its slot for
// its whole duration (a websocket stream included), so excess requests are
// refused with Retry-After instead of queued.
type detectionGate struct {
	limit  rate.Limit
	burst  int
	slots  *semaphore.Weighted
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newDetectionGate(cfg DetectionLimitConfig, logger *zap.Logger) *detectionGate {
	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = runtime.GOMAXPROCS(0)
	}
	return &detectionGate{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		slots:   semaphore.NewWeighted(int64(inFlight)),
		logger:  logger,
		clients: make(map[string]*rate.Limiter),
	}
}

// wrap guards a detection handler.
func (g *detectionGate) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !g.allow(client) {
			detectionsRejected.WithLabelValues("rate").Inc()
			g.logger.Debug("detection rate limited", zap.String("client", client))
			w.Header().Set("Retry-After", "1")
			RateLimited(w, "detection rate limit exceeded", r.URL.Path)
			return
		}
		if !g.slots.TryAcquire(1) {
			detectionsRejected.WithLabelValues("busy").Inc()
			g.logger.Debug("detection slots exhausted", zap.String("client", client))
			w.Header().Set("Retry-After", "1")
			Unavailable(w, "all detection slots are busy", r.URL.Path)
			return
		}
		detectionsInFlight.Inc()
		defer func() {
			detectionsInFlight.Dec()
			g.slots.Release(1)
		}()
		next(w, r)
	}
}

// allow spends one token from the client's bucket. A non-positive rate
// admits everything.
func (g *detectionGate) allow(client string) bool {
	if g.limit <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.clients[client]
	if !ok {
		if len(g.clients) >= maxTrackedClients {
			g.evictIdle(time.Now())
		}
		l = rate.NewLimiter(g.limit, g.burst)
		g.clients[client] = l
	}
	return l.Allow()
}

// evictIdle drops buckets that have refilled completely. A full bucket is
// indistinguishable from a new one, so nothing is lost. Must be called with
// g.mu held.
func (g *detectionGate) evictIdle(now time.Time) {
	for c, l := range g.clients {
		if l.TokensAt(now) >= float64(g.burst) {
			delete(g.clients, c)
		}
	}
}

// clientAddr is the host part of the peer address. Forwarding headers are
// not trusted; deployments behind a proxy should gate there.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
