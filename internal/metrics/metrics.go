package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Ad bids emitted, by state scheme
	BidsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adx_ad_bids_total",
		Help: "Total number of per-campaign ad bids emitted",
	}, []string{"scheme"})

	// Campaign-days with no bid, by reason
	BidsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adx_ad_bids_skipped_total",
		Help: "Total number of campaign-days skipped without a bid",
	}, []string{"reason"})

	ExploreTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adx_explore_actions_total",
		Help: "How many chosen actions came from exploration",
	})

	// Q-table updates, by outcome ("applied" or "discarded")
	QUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adx_q_updates_total",
		Help: "Total number of pending actions resolved",
	}, []string{"outcome"})

	Reward = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "adx_reward",
		Help:    "Reward credited to each applied Q-table update",
		Buckets: []float64{-100, -25, -5, -1, 0, 1, 5, 25, 100},
	})

	BidPrice = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "adx_bid_price",
		Help:    "Per-impression bid price",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	Epsilon = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adx_exploration_rate",
		Help: "Current epsilon of the bid shading learner",
	})

	// Snapshots persisted, by outcome ("committed" or "rejected")
	SnapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adx_qtable_snapshots_total",
		Help: "Total number of Q-table snapshots evaluated for persistence",
	}, []string{"outcome"})

	// gRPC calls served, by method and status code
	RPCsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adx_rpcs_total",
		Help: "Total number of bid shading RPCs served",
	}, []string{"method", "code"})

	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adx_rpc_duration_seconds",
		Help:    "Latency of bid shading RPCs",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func Init() {
	prometheus.MustRegister(
		BidsTotal,
		BidsSkippedTotal,
		ExploreTotal,
		QUpdatesTotal,
		Reward,
		BidPrice,
		Epsilon,
		SnapshotsTotal,
		RPCsTotal,
		RPCDuration,
	)
}
