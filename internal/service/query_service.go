package service

import (
	"context"
	"time"

	"pos-analytics/internal/analytics"
	"pos-analytics/internal/apperr"
	"pos-analytics/internal/flatten"
	"pos-analytics/internal/menus"
	"pos-analytics/internal/models"
	"pos-analytics/internal/posclient"
	"pos-analytics/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names used in metrics, spans and query events.
const (
	OpSalesSummary = "sales_summary"
	OpTopItems     = "top_items"
	OpProductMix   = "product_mix"
)

// OrderIterator is a lazy source of raw orders for one time window.
type OrderIterator interface {
	Next(ctx context.Context) (*models.Order, error)
}

// POSClient is the upstream surface the query service depends on.
type POSClient interface {
	FetchMenus(ctx context.Context) (*models.MenuDocument, error)
	Orders(ctx context.Context, window models.TimeWindow) OrderIterator
	RestaurantGUID() string
}

// MenuCache stores resolved menu lookups between queries. Implementations
// must treat every error as non-fatal; the service falls back to fetching.
type MenuCache interface {
	GetMenuLookup(ctx context.Context, restaurantID string) (menus.Lookup, bool, error)
	SetMenuLookup(ctx context.Context, restaurantID string, lookup menus.Lookup, ttl time.Duration) error
}

// QueryEventPublisher emits query completion events for downstream
// consumers. Publish failures never fail the query.
type QueryEventPublisher interface {
	PublishQueryCompleted(ctx context.Context, event *models.QueryCompletedEvent) error
}

// QueryService runs the three analytical operations end to end: fetch,
// flatten, join, aggregate. It holds no mutable state of its own; the
// session manager inside the POS client is the only shared state between
// concurrent queries.
type QueryService struct {
	pos       POSClient
	cache     MenuCache
	menuTTL   time.Duration
	publisher QueryEventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewQueryService creates a query service. cache and publisher may be nil,
// disabling menu caching and event publishing respectively.
func NewQueryService(pos POSClient, cache MenuCache, menuTTL time.Duration, publisher QueryEventPublisher) *QueryService {
	return &QueryService{
		pos:       pos,
		cache:     cache,
		menuTTL:   menuTTL,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// NewPOSAdapter wraps the concrete POS client in the POSClient interface.
func NewPOSAdapter(client *posclient.Client) POSClient {
	return &posAdapter{client}
}

type posAdapter struct {
	*posclient.Client
}

func (a *posAdapter) Orders(_ context.Context, window models.TimeWindow) OrderIterator {
	return a.FetchOrders(window)
}

// GetSalesSummary computes total revenue, total quantity and a per-item
// breakdown for [start, end).
func (s *QueryService) GetSalesSummary(ctx context.Context, start, end time.Time, restaurantID string) (*models.SalesSummary, error) {
	if !start.Before(end) {
		return nil, apperr.New(apperr.KindInvalidArgument, "start must be before end")
	}

	window := models.NewTimeWindow(start, end)
	var summary models.SalesSummary
	err := s.run(ctx, OpSalesSummary, window, restaurantID, func(rows []analytics.Row) (int, float64) {
		summary = analytics.SalesSummary(rows)
		return len(summary.Items), summary.TotalRevenue
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetTopItems returns the top n items by quantity over the trailing number
// of days, ranked by quantity then revenue.
func (s *QueryService) GetTopItems(ctx context.Context, days, n int, restaurantID string) ([]models.ItemSales, error) {
	if days <= 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "days must be positive")
	}
	if n <= 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "n must be positive")
	}

	end := s.now().UTC()
	window := models.NewTimeWindow(end.AddDate(0, 0, -days), end)

	var items []models.ItemSales
	err := s.run(ctx, OpTopItems, window, restaurantID, func(rows []analytics.Row) (int, float64) {
		items = analytics.TopItems(rows, n)
		var revenue float64
		for _, item := range items {
			revenue += item.Revenue
		}
		return len(items), revenue
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetProductMix returns per-category quantity, revenue and revenue share
// for [start, end).
func (s *QueryService) GetProductMix(ctx context.Context, start, end time.Time, restaurantID string) ([]models.CategorySales, error) {
	if !start.Before(end) {
		return nil, apperr.New(apperr.KindInvalidArgument, "start must be before end")
	}

	window := models.NewTimeWindow(start, end)
	var mix []models.CategorySales
	err := s.run(ctx, OpProductMix, window, restaurantID, func(rows []analytics.Row) (int, float64) {
		mix = analytics.ProductMix(rows)
		var revenue float64
		for _, cat := range mix {
			revenue += cat.Revenue
		}
		return len(mix), revenue
	})
	if err != nil {
		return nil, err
	}
	return mix, nil
}

// run executes the shared query pipeline and hands the joined table to
// aggregate, which reports (row count, total revenue) for the query event.
func (s *QueryService) run(ctx context.Context, operation string, window models.TimeWindow, restaurantID string, aggregate func([]analytics.Row) (int, float64)) error {
	ctx, span := util.StartSpan(ctx, "QueryService."+operation)
	defer span.End()

	start := s.now()
	queryID := uuid.New().String()

	rows, err := s.joinedRows(ctx, window, restaurantID)
	if err != nil {
		util.QueriesTotal.WithLabelValues(operation, "error").Inc()
		s.logger.Error("Query failed",
			zap.String("operation", operation),
			zap.String("query_id", queryID),
			zap.Error(err))
		return err
	}

	rowCount, totalRevenue := aggregate(rows)
	duration := s.now().Sub(start)

	util.QueriesTotal.WithLabelValues(operation, "ok").Inc()
	util.QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	s.logger.Info("Query completed",
		zap.String("operation", operation),
		zap.String("query_id", queryID),
		zap.Int("rows", rowCount),
		zap.Duration("duration", duration))

	s.publishCompleted(ctx, queryID, operation, restaurantID, window, rowCount, totalRevenue, duration)
	return nil
}

// joinedRows builds the joined, window-filtered table for one query.
// Flattening happens while the order stream is still being paged in, but
// any flatten or fetch failure aborts the query: a partial table is never
// aggregated into a misleading answer.
func (s *QueryService) joinedRows(ctx context.Context, window models.TimeWindow, restaurantID string) ([]analytics.Row, error) {
	lookup, err := s.menuLookup(ctx)
	if err != nil {
		return nil, err
	}

	stream := s.pos.Orders(ctx, window)
	var items []models.LineItem
	for {
		order, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if order == nil {
			break
		}
		rows, err := flatten.Flatten(order, s.pos.RestaurantGUID())
		if err != nil {
			return nil, err
		}
		items = append(items, rows...)
	}
	util.LineItemsFlattenedTotal.Add(float64(len(items)))

	return analytics.Join(items, lookup, window, restaurantID), nil
}

// menuLookup returns the resolved menu table, served from cache when a
// fresh copy exists. Cache failures only cost a fetch.
func (s *QueryService) menuLookup(ctx context.Context) (menus.Lookup, error) {
	guid := s.pos.RestaurantGUID()

	if s.cache != nil {
		lookup, ok, err := s.cache.GetMenuLookup(ctx, guid)
		if err != nil {
			s.logger.Warn("Menu cache read failed", zap.Error(err))
		} else if ok {
			util.MenuCacheHitsTotal.Inc()
			return lookup, nil
		}
		util.MenuCacheMissesTotal.Inc()
	}

	doc, err := s.pos.FetchMenus(ctx)
	if err != nil {
		return nil, err
	}

	lookup, err := menus.Resolve(doc, guid)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetMenuLookup(ctx, guid, lookup, s.menuTTL); err != nil {
			s.logger.Warn("Menu cache write failed", zap.Error(err))
		}
	}
	return lookup, nil
}

// RefreshMenuLookup fetches and re-caches the menu table, bypassing the
// cached copy. The background refresher calls this on its ticker.
func (s *QueryService) RefreshMenuLookup(ctx context.Context) error {
	guid := s.pos.RestaurantGUID()

	doc, err := s.pos.FetchMenus(ctx)
	if err != nil {
		return err
	}
	lookup, err := menus.Resolve(doc, guid)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.SetMenuLookup(ctx, guid, lookup, s.menuTTL); err != nil {
			return err
		}
	}
	return nil
}

func (s *QueryService) publishCompleted(ctx context.Context, queryID, operation, restaurantID string, window models.TimeWindow, rowCount int, totalRevenue float64, duration time.Duration) {
	if s.publisher == nil {
		return
	}

	event := &models.QueryCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQueryCompleted,
			Timestamp: s.now().UTC(),
		},
		QueryID:      queryID,
		Operation:    operation,
		RestaurantID: restaurantID,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		RowCount:     rowCount,
		TotalRevenue: totalRevenue,
		DurationMS:   duration.Milliseconds(),
	}

	if err := s.publisher.PublishQueryCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish QueryCompleted event",
			zap.String("query_id", queryID),
			zap.Error(err))
	}
}
