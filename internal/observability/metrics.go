package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learner_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the learner chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "learner_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesPostedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learner_chat_messages_posted_total",
			Help: "Total number of messages posted, by chat type.",
		},
		[]string{"chat_type"},
	)
	messagesDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learner_chat_messages_deleted_total",
			Help: "Total number of messages soft-deleted, by chat type.",
		},
		[]string{"chat_type"},
	)
	mentionsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "learner_chat_mentions_resolved_total",
			Help: "Total number of mentions resolved in posted messages.",
		},
	)
	rosterCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learner_chat_roster_cache_total",
			Help: "Roster cache lookups by result.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "learner_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesPostedTotal,
		messagesDeletedTotal,
		mentionsResolvedTotal,
		rosterCacheTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessagePosted(chatType string) {
	messagesPostedTotal.WithLabelValues(chatType).Inc()
}

func IncMessageDeleted(chatType string) {
	messagesDeletedTotal.WithLabelValues(chatType).Inc()
}

func AddMentionsResolved(n int) {
	if n > 0 {
		mentionsResolvedTotal.Add(float64(n))
	}
}

func IncRosterCache(result string) {
	rosterCacheTotal.WithLabelValues(result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
