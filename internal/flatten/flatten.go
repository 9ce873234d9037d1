// Package flatten turns raw order documents into flat line-item records.
//
// The POS order schema is self-referential: a selection's modifiers are
// themselves selections, nested to no guaranteed depth. Naive flattening
// of the top level silently drops revenue carried by nested selections,
// so the walk here visits the whole tree and decides emission per node.
package flatten

import (
	"pos-analytics/internal/apperr"
	"pos-analytics/internal/models"
)

// Flatten walks the item tree of one raw order depth-first and returns one
// record per billable node. Emission rules:
//
//   - a selection with no children is a leaf and is emitted;
//   - a selection with children marked decomposable is not emitted, and
//     every child is visited instead;
//   - a selection with children not marked decomposable is emitted as a
//     leaf-equivalent and its children are not expanded.
//
// The discriminator is the selection's item type, never nesting depth.
// Orders that are not approved produce no records. A selection GUID seen
// twice along one path fails the whole order with a malformed-order error
// rather than looping.
func Flatten(order *models.Order, restaurantID string) ([]models.LineItem, error) {
	if order == nil {
		return nil, apperr.New(apperr.KindMalformedOrder, "nil order document")
	}
	if order.ApprovalStatus != models.ApprovalStatusApproved {
		return nil, nil
	}

	var items []models.LineItem
	for ci := range order.Checks {
		check := &order.Checks[ci]
		for si := range check.Selections {
			path := map[string]bool{}
			if err := walk(order, restaurantID, &check.Selections[si], path, &items); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// FlattenAll flattens a batch of orders into one table, failing on the
// first malformed order so a partial table never reaches aggregation.
func FlattenAll(orders []models.Order, restaurantID string) ([]models.LineItem, error) {
	var items []models.LineItem
	for i := range orders {
		rows, err := Flatten(&orders[i], restaurantID)
		if err != nil {
			return nil, err
		}
		items = append(items, rows...)
	}
	return items, nil
}

func walk(order *models.Order, restaurantID string, sel *models.Selection, path map[string]bool, out *[]models.LineItem) error {
	if sel.GUID != "" {
		if path[sel.GUID] {
			return apperr.New(apperr.KindMalformedOrder,
				"order %s: selection %s revisited along its own path", order.GUID, sel.GUID)
		}
		path[sel.GUID] = true
		defer delete(path, sel.GUID)
	}

	if len(sel.Modifiers) > 0 && sel.Decomposable() {
		for i := range sel.Modifiers {
			if err := walk(order, restaurantID, &sel.Modifiers[i], path, out); err != nil {
				return err
			}
		}
		return nil
	}

	if sel.Quantity < 0 {
		return apperr.New(apperr.KindMalformedOrder,
			"order %s: selection %s has negative quantity %d", order.GUID, sel.GUID, sel.Quantity)
	}
	if sel.Price < 0 {
		return apperr.New(apperr.KindMalformedOrder,
			"order %s: selection %s has negative price %v", order.GUID, sel.GUID, sel.Price)
	}

	*out = append(*out, models.LineItem{
		OrderID:      order.GUID,
		ItemID:       sel.ItemGUID(),
		ItemName:     sel.DisplayName,
		Quantity:     sel.Quantity,
		UnitPrice:    sel.Price,
		LineRevenue:  float64(sel.Quantity) * sel.Price,
		Timestamp:    order.PaidDate.Time,
		RestaurantID: restaurantID,
	})
	return nil
}
