// Package metrics holds the product counters exported on /metrics.
//
// Collectors are package-level and registered on the default Prometheus
// registry by promauto, so any package can record an event without having a
// registry threaded through it.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	likesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildermatch_likes_total",
			Help: "Likes recorded, by whether they completed a match",
		},
		[]string{"matched"},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildermatch_matches_created_total",
			Help: "Mutual matches created",
		},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildermatch_messages_total",
			Help: "Messages sent, by how the thread was reached",
		},
		[]string{"kind"}, // direct_start, reply
	)

	signInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildermatch_sign_ins_total",
			Help: "Completed sign-ins by method",
		},
		[]string{"method"}, // magic_link, github
	)

	reposImportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildermatch_repositories_imported_total",
			Help: "GitHub repositories imported as portfolio items",
		},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildermatch_rate_limited_total",
			Help: "Requests refused by the rate limiter, by rule",
		},
		[]string{"rule"},
	)

	realtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildermatch_realtime_subscribers",
			Help: "Open websocket thread subscriptions",
		},
	)
)

// Message kinds.
const (
	MessageDirectStart = "direct_start"
	MessageReply       = "reply"
)

// Sign-in methods.
const (
	SignInMagicLink = "magic_link"
	SignInGitHub    = "github"
)

func LikeRecorded(matched, createdNewMatch bool) {
	likesTotal.WithLabelValues(strconv.FormatBool(matched)).Inc()
	if createdNewMatch {
		matchesTotal.Inc()
	}
}

func MessageSent(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func SignedIn(method string) {
	signInsTotal.WithLabelValues(method).Inc()
}

func ReposImported(n int) {
	reposImportedTotal.Add(float64(n))
}

func RateLimited(rule string) {
	rateLimitedTotal.WithLabelValues(rule).Inc()
}

// SubscriberOpened and SubscriberClosed bracket a websocket subscription.
func SubscriberOpened() { realtimeSubscribers.Inc() }
func SubscriberClosed() { realtimeSubscribers.Dec() }
