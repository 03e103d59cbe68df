package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of slow database queries",
		},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 提交创建计数
	SubmissionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_created_total",
			Help: "Total number of contractor submissions created",
		},
		[]string{"type"},
	)

	// 审批动作计数
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_total",
			Help: "Total number of review actions applied",
		},
		[]string{"action"},
	)

	// 审批并发冲突计数
	ReviewConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_conflicts_total",
			Help: "Total number of review attempts rejected as conflicts",
		},
	)

	// 进度重算耗时（秒）
	ProgressRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "progress_recompute_duration_seconds",
			Help:    "Project progress recomputation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// 通知发布计数
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_published_total",
			Help: "Total number of notification events published to MQ",
		},
		[]string{"routing_key"},
	)

	// 通知投递失败计数
	NotificationDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_failures_total",
			Help: "Total number of failed notification deliveries",
		},
		[]string{"channel"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSubmissionCreated 增加提交创建计数
func IncrementSubmissionCreated(submissionType string) {
	SubmissionsCreated.WithLabelValues(submissionType).Inc()
}

// IncrementReview 增加审批动作计数
func IncrementReview(action string) {
	ReviewsTotal.WithLabelValues(action).Inc()
}

// IncrementReviewConflict 增加审批冲突计数
func IncrementReviewConflict() {
	ReviewConflicts.Inc()
}

// ObserveProgressRecompute 记录进度重算耗时
func ObserveProgressRecompute(duration time.Duration) {
	ProgressRecomputeDuration.Observe(duration.Seconds())
}

// IncrementNotificationPublished 增加通知发布计数
func IncrementNotificationPublished(routingKey string) {
	NotificationsPublished.WithLabelValues(routingKey).Inc()
}

// IncrementNotificationDeliveryFailure 增加通知投递失败计数
func IncrementNotificationDeliveryFailure(channel string) {
	NotificationDeliveryFailures.WithLabelValues(channel).Inc()
}
