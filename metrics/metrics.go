// Package metrics exposes ledger activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"luckystake/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Collector holds the ledger metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	deposits        *prometheus.CounterVec
	depositVolume   *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	draws           *prometheus.CounterVec
	prizeAmount     *prometheus.CounterVec
	poolDeposited   *prometheus.GaugeVec
	poolYield       *prometheus.GaugeVec
	poolParticipant *prometheus.GaugeVec
	yieldRuns       prometheus.Counter
	observers       prometheus.Gauge
	observerDrops   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector registers every ledger metric on a fresh registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		deposits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_deposits_total",
			Help: "Deposits recorded, by pool",
		}, []string{"pool"}),
		depositVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_deposit_volume_total",
			Help: "Sum of deposited amounts, by pool",
		}, []string{"pool"}),
		withdrawals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_withdrawals_total",
			Help: "Deposits withdrawn, by pool",
		}, []string{"pool"}),
		draws: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_draws_total",
			Help: "Prizes drawn, by pool",
		}, []string{"pool"}),
		prizeAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_prize_amount_total",
			Help: "Sum of awarded prize amounts, by pool",
		}, []string{"pool"}),
		poolDeposited: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "luckystake_pool_total_deposited",
			Help: "Active principal held by each pool",
		}, []string{"pool"}),
		poolYield: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "luckystake_pool_yield_accrued",
			Help: "Prize accrued and not yet awarded",
		}, []string{"pool"}),
		poolParticipant: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "luckystake_pool_participants",
			Help: "Distinct accounts with an active deposit",
		}, []string{"pool"}),
		yieldRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "luckystake_yield_runs_total",
			Help: "Completed yield accrual runs",
		}),
		observers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "luckystake_observers",
			Help: "Connected realtime observers",
		}),
		observerDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "luckystake_observer_dropped_messages_total",
			Help: "Notifications dropped because an observer buffer was full",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luckystake_http_requests_total",
			Help: "HTTP requests, by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "luckystake_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Subscribe attaches the collector to every ledger event it tracks
func (c *Collector) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(c.HandleEvent,
		events.EventTypeDepositRecorded,
		events.EventTypeDepositWithdrawn,
		events.EventTypePoolUpdate,
		events.EventTypePrizeDrawn,
		events.EventTypeYieldUpdate,
	)
}

// HandleEvent updates the metrics affected by a single event
func (c *Collector) HandleEvent(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.DepositRecordedEvent:
		c.deposits.WithLabelValues(e.Deposit.PoolID).Inc()
		amount, _ := e.Deposit.Amount.Float64()
		c.depositVolume.WithLabelValues(e.Deposit.PoolID).Add(amount)
	case events.DepositWithdrawnEvent:
		c.withdrawals.WithLabelValues(e.Deposit.PoolID).Inc()
	case events.PoolUpdateEvent:
		total, _ := e.Pool.TotalDeposited.Float64()
		yield, _ := e.Pool.YieldAccrued.Float64()
		c.poolDeposited.WithLabelValues(e.PoolID).Set(total)
		c.poolYield.WithLabelValues(e.PoolID).Set(yield)
		c.poolParticipant.WithLabelValues(e.PoolID).Set(float64(e.Pool.Participants))
	case events.PrizeDrawnEvent:
		c.draws.WithLabelValues(e.Prize.PoolID).Inc()
		amount, _ := e.Prize.Amount.Float64()
		c.prizeAmount.WithLabelValues(e.Prize.PoolID).Add(amount)
	case events.YieldUpdateEvent:
		c.yieldRuns.Inc()
		for _, p := range e.Pools {
			yield, _ := p.YieldAccrued.Float64()
			c.poolYield.WithLabelValues(p.PoolID).Set(yield)
		}
	default:
		log.WithField("eventType", event.Type()).Debug("Metrics ignoring event")
	}
}

// SetObservers records the number of connected realtime observers
func (c *Collector) SetObservers(n int) {
	c.observers.Set(float64(n))
}

// ObserverDropped counts one notification discarded for a slow observer
func (c *Collector) ObserverDropped() {
	c.observerDrops.Inc()
}

// GinMiddleware records request counts and latency by matched route
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
