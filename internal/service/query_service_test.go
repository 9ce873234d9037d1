package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-analytics/internal/apperr"
	"pos-analytics/internal/menus"
	"pos-analytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGUID = "rest-1"

var (
	qStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	qEnd   = time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	paidAt = models.Time{Time: qStart.Add(6 * time.Hour)}
)

type fakeIterator struct {
	orders []models.Order
	idx    int
}

func (it *fakeIterator) Next(_ context.Context) (*models.Order, error) {
	if it.idx >= len(it.orders) {
		return nil, nil
	}
	order := &it.orders[it.idx]
	it.idx++
	return order, nil
}

type fakePOS struct {
	menus      *models.MenuDocument
	orders     []models.Order
	menuCalls  int
	orderCalls int
	menuErr    error
}

func (f *fakePOS) FetchMenus(_ context.Context) (*models.MenuDocument, error) {
	f.menuCalls++
	if f.menuErr != nil {
		return nil, f.menuErr
	}
	return f.menus, nil
}

func (f *fakePOS) Orders(_ context.Context, _ models.TimeWindow) OrderIterator {
	f.orderCalls++
	return &fakeIterator{orders: f.orders}
}

func (f *fakePOS) RestaurantGUID() string { return testGUID }

type fakeCache struct {
	store map[string]menus.Lookup
	hits  int
	sets  int
}

func (f *fakeCache) GetMenuLookup(_ context.Context, restaurantID string) (menus.Lookup, bool, error) {
	lookup, ok := f.store[restaurantID]
	if ok {
		f.hits++
	}
	return lookup, ok, nil
}

func (f *fakeCache) SetMenuLookup(_ context.Context, restaurantID string, lookup menus.Lookup, _ time.Duration) error {
	if f.store == nil {
		f.store = map[string]menus.Lookup{}
	}
	f.store[restaurantID] = lookup
	f.sets++
	return nil
}

type fakePublisher struct {
	events []*models.QueryCompletedEvent
}

func (f *fakePublisher) PublishQueryCompleted(_ context.Context, event *models.QueryCompletedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func menuDoc() *models.MenuDocument {
	return &models.MenuDocument{Menus: []models.Menu{{
		GUID: "m1",
		Name: "Cafe",
		Groups: []models.MenuGroup{{
			GUID: "g1",
			Name: "Dessert",
			Items: []models.MenuItem{
				{GUID: "i1", Name: "Brownie", Price: 5.0},
				{GUID: "i3", Name: "Sprinkles", Price: 1.0},
			},
		}},
	}}}
}

// The documented end-to-end shape: item i2 decomposes into i3, so the
// summary reports items i1 and i3 only.
func testOrders() []models.Order {
	return []models.Order{{
		GUID:           "A",
		ApprovalStatus: models.ApprovalStatusApproved,
		PaidDate:       paidAt,
		Checks: []models.Check{{
			GUID: "A-c1",
			Selections: []models.Selection{
				{
					GUID:        "s1",
					DisplayName: "Brownie",
					Quantity:    2,
					Price:       5.0,
					Item:        &models.EntityRef{GUID: "i1"},
				},
				{
					GUID:     "s2",
					ItemType: models.ItemTypeComposite,
					Modifiers: []models.Selection{{
						GUID:        "s3",
						DisplayName: "Sprinkles",
						Quantity:    1,
						Price:       1.0,
						Item:        &models.EntityRef{GUID: "i3"},
					}},
				},
			},
		}},
	}}
}

func newService(pos *fakePOS, cache MenuCache, publisher QueryEventPublisher) *QueryService {
	svc := NewQueryService(pos, cache, time.Minute, publisher)
	svc.now = func() time.Time { return qEnd }
	return svc
}

func TestGetSalesSummaryEndToEnd(t *testing.T) {
	pos := &fakePOS{menus: menuDoc(), orders: testOrders()}
	publisher := &fakePublisher{}
	svc := newService(pos, nil, publisher)

	summary, err := svc.GetSalesSummary(context.Background(), qStart, qEnd, "")
	require.NoError(t, err)

	assert.InDelta(t, 11.0, summary.TotalRevenue, 1e-9)
	assert.Equal(t, 3, summary.TotalItems)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, "i1", summary.Items[0].ItemID)
	assert.InDelta(t, 10.0, summary.Items[0].Revenue, 1e-9)
	assert.Equal(t, "i3", summary.Items[1].ItemID)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, OpSalesSummary, event.Operation)
	assert.Equal(t, models.EventTypeQueryCompleted, event.EventType)
	assert.InDelta(t, 11.0, event.TotalRevenue, 1e-9)
}

func TestInvalidArgumentsFailBeforeAnyFetch(t *testing.T) {
	pos := &fakePOS{menus: menuDoc()}
	svc := newService(pos, nil, nil)
	ctx := context.Background()

	_, err := svc.GetSalesSummary(ctx, qEnd, qStart, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = svc.GetSalesSummary(ctx, qStart, qStart, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = svc.GetProductMix(ctx, qEnd, qStart, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = svc.GetTopItems(ctx, 0, 5, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = svc.GetTopItems(ctx, 7, 0, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	assert.Zero(t, pos.menuCalls)
	assert.Zero(t, pos.orderCalls)
}

func TestGetTopItemsTrailingWindow(t *testing.T) {
	orders := testOrders()
	// A stale order outside the trailing window must not count.
	stale := orders[0]
	stale.GUID = "B"
	stale.PaidDate = models.Time{Time: qEnd.AddDate(0, 0, -10)}
	pos := &fakePOS{menus: menuDoc(), orders: append(orders, stale)}
	svc := newService(pos, nil, nil)

	items, err := svc.GetTopItems(context.Background(), 7, 1, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "i1", items[0].ItemID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestGetProductMixShares(t *testing.T) {
	pos := &fakePOS{menus: menuDoc(), orders: testOrders()}
	svc := newService(pos, nil, nil)

	mix, err := svc.GetProductMix(context.Background(), qStart, qEnd, "")
	require.NoError(t, err)
	require.Len(t, mix, 1)
	assert.Equal(t, "Dessert", mix[0].CategoryName)
	assert.InDelta(t, 1.0, mix[0].RevenueShare, 1e-9)
}

func TestMenuLookupServedFromCache(t *testing.T) {
	pos := &fakePOS{menus: menuDoc(), orders: testOrders()}
	cache := &fakeCache{}
	svc := newService(pos, cache, nil)
	ctx := context.Background()

	_, err := svc.GetSalesSummary(ctx, qStart, qEnd, "")
	require.NoError(t, err)
	assert.Equal(t, 1, pos.menuCalls)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.GetSalesSummary(ctx, qStart, qEnd, "")
	require.NoError(t, err)
	// Second query hits the cache instead of the POS API.
	assert.Equal(t, 1, pos.menuCalls)
	assert.Equal(t, 1, cache.hits)
}

func TestMalformedOrderAbortsQuery(t *testing.T) {
	orders := testOrders()
	orders[0].Checks[0].Selections[0].Quantity = -2
	pos := &fakePOS{menus: menuDoc(), orders: orders}
	publisher := &fakePublisher{}
	svc := newService(pos, nil, publisher)

	_, err := svc.GetSalesSummary(context.Background(), qStart, qEnd, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindMalformedOrder))
	// A failed query publishes nothing: no partial answer, no event.
	assert.Empty(t, publisher.events)
}

func TestMenuFetchFailureAbortsQuery(t *testing.T) {
	pos := &fakePOS{menuErr: errors.New("connection reset")}
	svc := newService(pos, nil, nil)

	_, err := svc.GetSalesSummary(context.Background(), qStart, qEnd, "")
	require.Error(t, err)
	assert.Zero(t, pos.orderCalls)
}

func TestRefreshMenuLookupWarmsCache(t *testing.T) {
	pos := &fakePOS{menus: menuDoc(), orders: testOrders()}
	cache := &fakeCache{}
	svc := newService(pos, cache, nil)
	ctx := context.Background()

	require.NoError(t, svc.RefreshMenuLookup(ctx))
	assert.Equal(t, 1, cache.sets)

	_, err := svc.GetSalesSummary(ctx, qStart, qEnd, "")
	require.NoError(t, err)
	// The warmed cache means the query itself never fetches menus.
	assert.Equal(t, 1, pos.menuCalls)
	assert.Equal(t, 1, cache.hits)
}
