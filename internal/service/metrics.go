package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenebreak_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status", "user_id"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenebreak_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "user_id"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenebreak_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model", "user_id"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenebreak_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20), // 100 ... 2000, лимит ответа
		},
		[]string{"model", "user_id"},
	)

	breakdownParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenebreak_breakdown_parse_failures_total",
			Help: "Model responses that could not be turned into a breakdown.",
		},
		[]string{"reason"}, // no_json, invalid_json, schema
	)
	scenesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenebreak_scenes_saved_total",
			Help: "Scene save attempts by outcome.",
		},
		[]string{"status"},
	)
)

func observeAIRequest(model, userID, status string, duration time.Duration) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "status": status, "user_id": userID}).Inc()
	if duration > 0 {
		aiRequestDuration.With(prometheus.Labels{"model": model, "user_id": userID}).Observe(duration.Seconds())
	}
}

func observeTokenUsage(model, userID string, usage UsageInfo) {
	if usage.TotalTokens == 0 {
		return
	}
	aiPromptTokens.With(prometheus.Labels{"model": model, "user_id": userID}).Observe(float64(usage.PromptTokens))
	aiCompletionTokens.With(prometheus.Labels{"model": model, "user_id": userID}).Observe(float64(usage.CompletionTokens))
}
