package control

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "rfcontrol_control_"

// Result labels for the requests counter.
const (
	resultPublished = "published"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	PublishSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. If the
// collectors are already registered (e.g. a second Dispatcher in the same
// process), the existing ones are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "requests_total",
				Help: "Control requests by terminal result",
			},
			[]string{"result"},
		),
		PublishSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "publish_seconds",
			Help:    "Time spent publishing a command to the transmitter channel",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.Requests = registerOrExisting(reg, m.Requests)
	m.PublishSeconds = registerOrExisting(reg, m.PublishSeconds)

	for _, result := range []string{resultPublished, resultRejected, resultFailed} {
		m.Requests.WithLabelValues(result)
	}
	return m
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
