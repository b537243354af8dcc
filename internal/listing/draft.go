package listing

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is the item type reported by the vision model.
type Category string

const (
	CategoryObject   Category = "OBJECT"
	CategoryClothing Category = "CLOTHING"
	CategoryUnknown  Category = "UNKNOWN"
)

// Categories lists every valid category in schema order.
var Categories = []Category{CategoryObject, CategoryClothing, CategoryUnknown}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryObject, CategoryClothing, CategoryUnknown:
		return true
	}
	return false
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// Draft is the listing text generated for one photographed item.
type Draft struct {
	Category              Category `json:"category"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	PriceRange            string   `json:"priceRange"`
	Hashtags              []string `json:"hashtags"`
	SuggestedMarketplaces []string `json:"suggestedMarketplaces"`
}

// Normalize replaces nil sequences with empty ones so a draft always
// serializes hashtags and marketplaces as arrays.
func (d *Draft) Normalize() {
	if d.Hashtags == nil {
		d.Hashtags = []string{}
	}
	if d.SuggestedMarketplaces == nil {
		d.SuggestedMarketplaces = []string{}
	}
}

// Validate checks the invariants a draft must hold after analysis.
func (d *Draft) Validate() error {
	if !d.Category.Valid() {
		return fmt.Errorf("invalid category %q", d.Category)
	}
	if d.Hashtags == nil || d.SuggestedMarketplaces == nil {
		return fmt.Errorf("hashtags and marketplaces must not be nil")
	}
	return nil
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Hashtags = append([]string{}, d.Hashtags...)
	c.SuggestedMarketplaces = append([]string{}, d.SuggestedMarketplaces...)
	return &c
}

// DisplayHashtags returns the hashtags with a leading '#', adding it where
// the model left it out.
func (d *Draft) DisplayHashtags() []string {
	tags := make([]string, 0, len(d.Hashtags))
	for _, tag := range d.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	return tags
}

var nonPriceChars = regexp.MustCompile(`[^0-9-]`)

// PriceDigits strips the price range down to digits and dashes,
// e.g. "15€ - 25€" becomes "15-25".
func (d *Draft) PriceDigits() string {
	return nonPriceChars.ReplaceAllString(d.PriceRange, "")
}
