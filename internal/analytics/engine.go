// Package analytics computes the three analytical views over the joined
// order table. Everything here is a pure function of its inputs: no I/O,
// no hidden state, so results are deterministic and property-testable.
package analytics

import (
	"sort"

	"pos-analytics/internal/menus"
	"pos-analytics/internal/models"
)

// Row is one flattened line item enriched with its category.
type Row struct {
	models.LineItem
	CategoryName string
}

// Join enriches line items with their menu category, filters them to the
// window, and optionally to one restaurant. Items missing from the lookup
// keep the Uncategorized sentinel instead of being dropped.
func Join(items []models.LineItem, lookup menus.Lookup, window models.TimeWindow, restaurantID string) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		if restaurantID != "" && item.RestaurantID != restaurantID {
			continue
		}
		if !window.Contains(item.Timestamp) {
			continue
		}

		entry := lookup.Get(item.RestaurantID, item.ItemID, item.ItemName)
		row := Row{LineItem: item, CategoryName: entry.CategoryName}
		if row.ItemName == "" {
			row.ItemName = entry.ItemName
		}
		rows = append(rows, row)
	}
	return rows
}

// SalesSummary totals revenue and quantity over the rows and breaks them
// down per item, ordered by revenue descending with name ascending ties.
func SalesSummary(rows []Row) models.SalesSummary {
	summary := models.SalesSummary{Items: []models.ItemSales{}}

	byItem := groupByItem(rows)
	for _, item := range byItem {
		summary.TotalRevenue += item.Revenue
		summary.TotalItems += item.Quantity
		summary.Items = append(summary.Items, item)
	}

	sort.Slice(summary.Items, func(i, j int) bool {
		a, b := summary.Items[i], summary.Items[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.ItemName < b.ItemName
	})
	return summary
}

// TopItems ranks items by quantity descending, breaking ties by revenue
// descending, and returns at most n rows. Fewer distinct items than n is
// not an error; all of them are returned.
func TopItems(rows []Row, n int) []models.ItemSales {
	items := make([]models.ItemSales, 0)
	for _, item := range groupByItem(rows) {
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.ItemName < b.ItemName
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

// ProductMix groups rows by category with each category's share of total
// revenue. Shares are 0 when total revenue is 0, never a division fault.
func ProductMix(rows []Row) []models.CategorySales {
	byCategory := map[string]*models.CategorySales{}
	var total float64

	for _, row := range rows {
		cat, ok := byCategory[row.CategoryName]
		if !ok {
			cat = &models.CategorySales{CategoryName: row.CategoryName}
			byCategory[row.CategoryName] = cat
		}
		cat.Quantity += row.Quantity
		cat.Revenue += row.LineRevenue
		total += row.LineRevenue
	}

	mix := make([]models.CategorySales, 0, len(byCategory))
	for _, cat := range byCategory {
		if total > 0 {
			cat.RevenueShare = cat.Revenue / total
		}
		mix = append(mix, *cat)
	}

	sort.Slice(mix, func(i, j int) bool {
		a, b := mix[i], mix[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.CategoryName < b.CategoryName
	})
	return mix
}

func groupByItem(rows []Row) map[string]models.ItemSales {
	byItem := map[string]models.ItemSales{}
	for _, row := range rows {
		item := byItem[row.ItemID]
		item.ItemID = row.ItemID
		if item.ItemName == "" {
			item.ItemName = row.ItemName
		}
		item.Quantity += row.Quantity
		item.Revenue += row.LineRevenue
		byItem[row.ItemID] = item
	}
	return byItem
}
