package domain

import "time"

// MaxStock caps the per-car unit counter. Stock adjustments are bounded by it
// as well, so stock + delta always fits in an int.
const MaxStock = 100_000

// Car is a catalog listing. Stock is the number of reservable units and is
// never negative and never above MaxStock; Images keeps the admin-chosen order, first entry is the cover.
type Car struct {
	ID          string    `json:"id"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cover returns the first image URL, or "" when the car has none.
func (c Car) Cover() string {
	if len(c.Images) == 0 {
		return ""
	}
	return c.Images[0]
}

type InventoryTotals struct {
	Cars  int `json:"cars"`
	Units int `json:"units"`
}
