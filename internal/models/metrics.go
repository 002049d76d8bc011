package models

import "time"

// SystemMetrics is a point-in-time view of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	ModelCalls               uint64    `json:"modelCalls"`
	ModelFailures            uint64    `json:"modelFailures"`
	Fallbacks                uint64    `json:"fallbacks"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
