package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsphere",
		Name:      "fanout_delivered_total",
		Help:      "Events queued on a peer connection.",
	}, []string{"event"})

	Dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsphere",
		Name:      "fanout_dropped_total",
		Help:      "Events not delivered, by reason.",
	}, []string{"event", "reason"})

	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsphere",
		Name:      "message_mutations_total",
		Help:      "Message mutations by operation and outcome kind.",
	}, []string{"op", "result"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsphere",
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})

	TypingActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsphere",
		Name:      "typing_signals_active",
		Help:      "Unexpired typing signals.",
	})
)

func init() {
	prometheus.MustRegister(Delivered, Dropped, Mutations, Connections, TypingActive)
}

// Register mounts GET /metrics.
func Register(r gin.IRoutes) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
