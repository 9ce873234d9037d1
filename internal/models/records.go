package models

import "time"

// UncategorizedName is the sentinel category for items without a group,
// so unmatched revenue is never silently dropped from product mix.
const UncategorizedName = "Uncategorized"

// LineItem is one flattened order line: exactly one per leaf or
// non-decomposable selection reachable in the raw order document.
type LineItem struct {
	OrderID      string    `json:"order_id"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	LineRevenue  float64   `json:"line_revenue"`
	Timestamp    time.Time `json:"timestamp"`
	RestaurantID string    `json:"restaurant_id"`
}

// TimeWindow filters line items by timestamp. Start is inclusive, End
// exclusive, and both are normalized to UTC.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow normalizes both bounds to UTC.
func NewTimeWindow(start, end time.Time) TimeWindow {
	return TimeWindow{Start: start.UTC(), End: end.UTC()}
}

// Contains reports whether t falls inside [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.End)
}

// ItemSales is one row of a per-item breakdown.
type ItemSales struct {
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// SalesSummary is the sales-summary query result.
type SalesSummary struct {
	TotalRevenue float64     `json:"total_revenue"`
	TotalItems   int         `json:"total_items"`
	Items        []ItemSales `json:"items"`
}

// CategorySales is one row of a product-mix breakdown.
type CategorySales struct {
	CategoryName string  `json:"category_name"`
	Quantity     int     `json:"quantity"`
	Revenue      float64 `json:"revenue"`
	RevenueShare float64 `json:"revenue_share"`
}
