// Package observability holds the Prometheus metrics of the server: HTTP
// traffic recorded by the REST middleware, and game activity recorded by a
// Publisher that sits in front of the broadcast gateway.
package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wricardo/escape-room-game/game/engine"
)

const namespace = "escape_room"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	actionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "actions_total",
			Help:      "Resolved actions by room, stat and result.",
		},
		[]string{"room", "stat", "result"},
	)
	stateVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "game",
		Name:      "state_version",
		Help:      "Version of the last committed session state.",
	})
	players = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "players",
			Help:      "Joined players by role.",
		},
		[]string{"role"},
	)
	phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "phase",
			Help:      "1 for the current game phase, 0 otherwise.",
		},
		[]string{"phase"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, actionsResolved, stateVersion, players, phase)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// StatePublisher is the sink a session store publishes to.
type StatePublisher interface {
	PublishActionResult(res *engine.ActionResult, version uint64)
	PublishSnapshot(s *engine.State)
}

// Publisher records game metrics for every committed change and forwards it
// to the next publisher unchanged.
type Publisher struct {
	next StatePublisher
}

// NewPublisher wraps next. A nil next only records.
func NewPublisher(next StatePublisher) *Publisher {
	RegisterMetrics()
	return &Publisher{next: next}
}

func (p *Publisher) PublishActionResult(res *engine.ActionResult, version uint64) {
	actionsResolved.WithLabelValues(res.RoomID, res.Stat, string(res.Outcome.Result)).Inc()
	if p.next != nil {
		p.next.PublishActionResult(res, version)
	}
}

func (p *Publisher) PublishSnapshot(s *engine.State) {
	stateVersion.Set(float64(s.Version))

	counts := map[engine.Role]int{engine.RolePlayer: 0, engine.RoleGM: 0}
	for _, pl := range s.Players {
		counts[pl.Role]++
	}
	for role, n := range counts {
		players.WithLabelValues(string(role)).Set(float64(n))
	}
	for _, ph := range []engine.Phase{engine.PhaseLobby, engine.PhaseInProgress, engine.PhaseFinished} {
		v := 0.0
		if s.Game.Phase == ph {
			v = 1
		}
		phase.WithLabelValues(string(ph)).Set(v)
	}

	if p.next != nil {
		p.next.PublishSnapshot(s)
	}
}
