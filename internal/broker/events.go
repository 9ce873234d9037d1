package broker

import (
	"context"
	"fmt"

	"pos-analytics/internal/models"
	"pos-analytics/internal/util"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishQueryCompleted publishes a QueryCompleted event keyed by query ID.
func (ep *EventPublisher) PublishQueryCompleted(ctx context.Context, event *models.QueryCompletedEvent) error {
	key := fmt.Sprintf("query-%s", event.QueryID)
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.QueryEventsPublishedTotal.Inc()
	return nil
}
