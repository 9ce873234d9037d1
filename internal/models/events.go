package models

import "time"

// Event types
const (
	EventTypeQueryCompleted = "QUERY_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryCompletedEvent is published after a successful analytical query,
// feeding downstream warehousing.
type QueryCompletedEvent struct {
	BaseEvent
	QueryID      string    `json:"query_id"`
	Operation    string    `json:"operation"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	RowCount     int       `json:"row_count"`
	TotalRevenue float64   `json:"total_revenue"`
	DurationMS   int64     `json:"duration_ms"`
}
