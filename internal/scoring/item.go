package scoring

import "strings"

// Item is one candidate listing. It is owned by the catalog and read-only
// here; absent fields are zero values.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Area        float64 `json:"area,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Location    string  `json:"location,omitempty"`
	Type        string  `json:"type,omitempty"`
	Floor       int     `json:"floor,omitempty"`
	HasParking  bool    `json:"has_parking,omitempty"`
	HasStorage  bool    `json:"has_storage,omitempty"`
}

// Text returns the lower-cased searchable text of the item.
func (it Item) Text() string {
	return strings.ToLower(it.Title + " " + it.Description + " " + it.Location + " " + it.Type)
}
