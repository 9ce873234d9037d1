package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// APITimeLayout is the POS API's date-time layout: millisecond precision
// with a colon-less zone offset, e.g. 2016-01-01T14:13:12.000+0400.
const APITimeLayout = "2006-01-02T15:04:05.000-0700"

// Time unmarshals both RFC3339 and the POS API layout, normalizing to UTC.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, APITimeLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// Order approval statuses as reported by the POS API. Only approved
// orders are paid and count toward revenue.
const (
	ApprovalStatusApproved = "APPROVED"
)

// ItemTypeComposite marks a selection whose billable content is fully
// represented by its child selections; the node itself is not a line item.
const ItemTypeComposite = "COMPOSITE"

// Order is a raw order document from the bulk orders endpoint.
type Order struct {
	GUID           string  `json:"guid"`
	ApprovalStatus string  `json:"approvalStatus"`
	PaidDate       Time    `json:"paidDate"`
	Checks         []Check `json:"checks"`
}

// Check is one bill within an order; orders split across parties carry
// multiple checks.
type Check struct {
	GUID       string      `json:"guid"`
	Selections []Selection `json:"selections"`
}

// Selection is one node of the order item tree. Modifiers nest further
// selections to unbounded depth.
type Selection struct {
	GUID        string      `json:"guid"`
	DisplayName string      `json:"displayName"`
	Quantity    int         `json:"quantity"`
	Price       float64     `json:"price"`
	ItemType    string      `json:"itemType"`
	Item        *EntityRef  `json:"item"`
	ItemGroup   *EntityRef  `json:"itemGroup"`
	Modifiers   []Selection `json:"modifiers"`
}

// Decomposable reports whether the selection's revenue lives entirely in
// its children. The discriminator is the item type, not nesting depth.
func (s *Selection) Decomposable() bool {
	return s.ItemType == ItemTypeComposite
}

// ItemGUID returns the referenced menu item GUID, or "" when absent.
func (s *Selection) ItemGUID() string {
	if s.Item == nil {
		return ""
	}
	return s.Item.GUID
}

// EntityRef is a reference to another POS entity by GUID.
type EntityRef struct {
	GUID string `json:"guid"`
}

// MenuDocument is the raw menus endpoint response.
type MenuDocument struct {
	Menus []Menu `json:"menus"`
}

// Menu is one menu; the merchant configures one menu per restaurant with
// the menu name set to the restaurant name.
type Menu struct {
	GUID   string      `json:"guid"`
	Name   string      `json:"name"`
	Groups []MenuGroup `json:"menuGroups"`
}

// MenuGroup is a category of menu items. Groups may nest further groups,
// so a full walk must recurse.
type MenuGroup struct {
	GUID   string      `json:"guid"`
	Name   string      `json:"name"`
	Items  []MenuItem  `json:"menuItems"`
	Groups []MenuGroup `json:"menuGroups"`
}

// MenuItem is a single orderable item on a menu.
type MenuItem struct {
	GUID  string  `json:"guid"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
