package models

import "time"

// SystemMetrics is the operator snapshot served by the admin stats endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	NoticesCreated           uint64    `json:"notices_created"`
	AccessGranted            uint64    `json:"access_granted"`
	AccessDenied             uint64    `json:"access_denied"`
	StorageFallbackWrites    uint64    `json:"storage_fallback_writes"`
	OrphansSwept             uint64    `json:"orphans_swept"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
