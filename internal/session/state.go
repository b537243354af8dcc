package session

import (
	"fmt"
	"strings"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/prompt"
)

// Phase is the coarse stage of a session. It only moves from PhaseUpload to
// PhaseReady; Reset is the way back.
type Phase int

const (
	PhaseUpload Phase = iota
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseReady:
		return "ready"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// View is the active tab while the session is ready.
type View int

const (
	ViewDetails View = iota
	ViewEdit
	ViewGenerate
)

// Views lists all views in tab order.
var Views = []View{ViewDetails, ViewEdit, ViewGenerate}

func (v View) String() string {
	switch v {
	case ViewDetails:
		return "details"
	case ViewEdit:
		return "edit"
	case ViewGenerate:
		return "generate"
	}
	return fmt.Sprintf("View(%d)", int(v))
}

func (v View) Valid() bool {
	return v >= ViewDetails && v <= ViewGenerate
}

func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *View) UnmarshalText(text []byte) error {
	parsed, err := ParseView(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseView parses a view name case-insensitively.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range Views {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown view %q", s)
}

// Loading describes the progress indicator shown while a gateway call runs.
type Loading struct {
	Active  bool   `json:"active"`
	Message string `json:"message"`
}

// State is everything a presentation layer needs to render a session.
type State struct {
	Phase   Phase            `json:"phase"`
	View    View             `json:"view"`
	Image   *listing.Payload `json:"-"`
	Draft   *listing.Draft   `json:"draft,omitempty"`
	Loading Loading          `json:"loading"`
	Style   prompt.Selection `json:"style"`
}

// InitialState returns the state of a fresh session.
func InitialState() State {
	return State{
		Phase: PhaseUpload,
		View:  ViewDetails,
		Style: prompt.DefaultSelection(),
	}
}

// HasImage reports whether the session currently holds a photo.
func (s State) HasImage() bool {
	return s.Image != nil && !s.Image.IsEmpty()
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	if s.Image != nil {
		img := s.Image.Clone()
		c.Image = &img
	}
	c.Draft = s.Draft.Clone()
	return c
}

// DraftEdit carries local changes to the listing text. Nil fields are left
// unchanged.
type DraftEdit struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceRange  *string `json:"priceRange,omitempty"`
}

func (e DraftEdit) apply(d *listing.Draft) {
	if e.Title != nil {
		d.Title = *e.Title
	}
	if e.Description != nil {
		d.Description = *e.Description
	}
	if e.PriceRange != nil {
		d.PriceRange = *e.PriceRange
	}
}
