package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	unstakes      *prometheus.CounterVec
	pointsAwarded prometheus.Counter
	duration      prometheus.Histogram
	custodyCalls  *prometheus.CounterVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the lazily registered staking metrics.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			unstakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_unstake_total",
				Help: "Count of unstake attempts by result class.",
			}, []string{"result"}),
			pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_points_awarded_total",
				Help: "Reward points credited by committed unstakes.",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "staking_unstake_duration_seconds",
				Help:    "Latency of unstake invocations including lock waits.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			}),
			custodyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_custody_calls_total",
				Help: "Count of custody service calls issued by the staking engine.",
			}, []string{"call", "result"}),
		}
		prometheus.MustRegister(
			stakingRegistry.unstakes,
			stakingRegistry.pointsAwarded,
			stakingRegistry.duration,
			stakingRegistry.custodyCalls,
		)
	})
	return stakingRegistry
}

// ObserveUnstake records one unstake outcome and its latency.
func (m *StakingMetrics) ObserveUnstake(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.unstakes.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *StakingMetrics) AddPointsAwarded(points uint32) {
	if m == nil || points == 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

func (m *StakingMetrics) ObserveCustodyCall(call string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.custodyCalls.WithLabelValues(call, result).Inc()
}
