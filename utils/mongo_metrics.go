package utils

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/event"
)

type MongoMetrics struct {
	ActiveConnections  int64 `json:"active"`
	OpenConnections    int64 `json:"open"`
	CreatedConnections int64 `json:"created"`
	ClosedConnections  int64 `json:"closed"`
}

var (
	metrics MongoMetrics

	mongoConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gradient_mongo_connections",
			Help: "MongoDB pool connections by state",
		},
		[]string{"state"}, // open, active
	)
)

// MongoPoolMonitor keeps MongoMetrics and the pool gauges in step with the
// driver's connection pool events.
func MongoPoolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: recordPoolEvent}
}

func recordPoolEvent(evt *event.PoolEvent) {
	switch evt.Type {
	case event.ConnectionCreated:
		atomic.AddInt64(&metrics.CreatedConnections, 1)
	case event.ConnectionClosed:
		atomic.AddInt64(&metrics.ClosedConnections, 1)
	case event.GetSucceeded:
		atomic.AddInt64(&metrics.ActiveConnections, 1)
	case event.ConnectionReturned:
		atomic.AddInt64(&metrics.ActiveConnections, -1)
	default:
		return
	}
	snap := GetMongoMetrics()
	mongoConnections.WithLabelValues("open").Set(float64(snap.OpenConnections))
	mongoConnections.WithLabelValues("active").Set(float64(snap.ActiveConnections))
}

func GetMongoMetrics() MongoMetrics {
	created := atomic.LoadInt64(&metrics.CreatedConnections)
	closed := atomic.LoadInt64(&metrics.ClosedConnections)
	return MongoMetrics{
		ActiveConnections:  atomic.LoadInt64(&metrics.ActiveConnections),
		OpenConnections:    created - closed,
		CreatedConnections: created,
		ClosedConnections:  closed,
	}
}
