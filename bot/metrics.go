package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_posts_submitted_total",
	Help: "New posts attempted, by kind and result",
}, []string{"kind", "result"})

var actionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_actions_total",
	Help: "Actions on hot posts and their comments, by action and result",
}, []string{"action", "result"})

var postsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_posts_classified_total",
	Help: "Hot posts classified, by relevance",
}, []string{"relevant"})

var rateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bot_rate_limit_hits_total",
	Help: "Times Reddit answered with a rate limit",
})
