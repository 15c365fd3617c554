package domain

import "time"

// ObserverStats is a point-in-time snapshot of observer counters.
type ObserverStats struct {
	EventsProcessed int64             `json:"events_processed"`
	EventsDropped   int64             `json:"events_dropped"`
	LostSamples     int64             `json:"lost_samples"`
	ErrorCount      int64             `json:"error_count"`
	LastEventTime   time.Time         `json:"last_event_time"`
	Uptime          time.Duration     `json:"uptime"`
	CustomMetrics   map[string]string `json:"custom_metrics,omitempty"`
}
