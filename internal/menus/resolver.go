// Package menus builds the item-to-category lookup from raw menu documents.
package menus

import (
	"pos-analytics/internal/apperr"
	"pos-analytics/internal/models"
)

// Key identifies a menu item within one restaurant. Item GUIDs are only
// unique per restaurant, so lookups are keyed by both.
type Key struct {
	RestaurantID string
	ItemID       string
}

// CategoryEntry is the resolved taxonomy row for one menu item.
type CategoryEntry struct {
	ItemID       string  `json:"item_id"`
	ItemName     string  `json:"item_name"`
	CategoryName string  `json:"category_name"`
	RestaurantID string  `json:"restaurant_id"`
	Price        float64 `json:"price"`
}

// Lookup maps (restaurant, item) to its category entry.
type Lookup map[Key]CategoryEntry

// Get returns the entry for the item, or a sentinel Uncategorized entry
// carrying the given fallback name when the item is unknown, so joins
// never lose revenue to a missing taxonomy row.
func (l Lookup) Get(restaurantID, itemID, fallbackName string) CategoryEntry {
	if entry, ok := l[Key{RestaurantID: restaurantID, ItemID: itemID}]; ok {
		return entry
	}
	return CategoryEntry{
		ItemID:       itemID,
		ItemName:     fallbackName,
		CategoryName: models.UncategorizedName,
		RestaurantID: restaurantID,
	}
}

// Resolve walks the raw menu document into a lookup table. Menu groups may
// nest further groups (an upstream quirk that once silently hid items one
// level down), so the walk recurses to arbitrary depth. Items whose group
// has no name land in the Uncategorized category rather than being dropped.
func Resolve(doc *models.MenuDocument, restaurantID string) (Lookup, error) {
	if doc == nil || len(doc.Menus) == 0 {
		return nil, apperr.New(apperr.KindMalformedMenu, "menu document has no menus")
	}

	lookup := Lookup{}
	for mi := range doc.Menus {
		menu := &doc.Menus[mi]
		for gi := range menu.Groups {
			if err := walkGroup(&menu.Groups[gi], restaurantID, lookup); err != nil {
				return nil, err
			}
		}
	}
	return lookup, nil
}

func walkGroup(group *models.MenuGroup, restaurantID string, lookup Lookup) error {
	category := group.Name
	if category == "" {
		category = models.UncategorizedName
	}

	for _, item := range group.Items {
		if item.GUID == "" {
			return apperr.New(apperr.KindMalformedMenu,
				"menu group %q contains an item without a guid", group.Name)
		}
		lookup[Key{RestaurantID: restaurantID, ItemID: item.GUID}] = CategoryEntry{
			ItemID:       item.GUID,
			ItemName:     item.Name,
			CategoryName: category,
			RestaurantID: restaurantID,
			Price:        item.Price,
		}
	}

	for gi := range group.Groups {
		if err := walkGroup(&group.Groups[gi], restaurantID, lookup); err != nil {
			return err
		}
	}
	return nil
}
