// Package prompt builds the instructions sent to the image models from the
// user's discrete selections. Everything here is pure and deterministic.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raine/sellsmart-bot/internal/listing"
)

// ErrEmptyInstruction is returned for a blank quick edit.
var ErrEmptyInstruction = errors.New("edit instruction is empty")

// QuickEdits are the one-tap edit phrases offered in the edit view.
var QuickEdits = []string{
	"Remove the background",
	"Add a cozy warm filter",
	"Make the background a white studio wall",
	"Enhance lighting and contrast",
}

// QuickEdit returns the instruction for an edit. The instruction is the
// chosen or typed phrase itself, never combined with other fields.
func QuickEdit(phrase string) (string, error) {
	if strings.TrimSpace(phrase) == "" {
		return "", ErrEmptyInstruction
	}
	return phrase, nil
}

// Selection is the user's choice in the generate view.
type Selection struct {
	Model         ModelChoice        `json:"model"`
	Location      LocationChoice     `json:"location"`
	Style         StyleChoice        `json:"style"`
	CustomDetails string             `json:"customDetails"`
	Resolution    listing.Resolution `json:"resolution"`
}

// DefaultSelection is what the generate view starts with.
func DefaultSelection() Selection {
	return Selection{
		Model:      NoModel,
		Location:   ProfessionalStudio,
		Style:      NeutralClean,
		Resolution: listing.Resolution1K,
	}
}

// Validate checks that every enumerated field holds a known value.
func (s Selection) Validate() error {
	if !s.Model.Valid() {
		return fmt.Errorf("invalid model choice %d", int(s.Model))
	}
	if !s.Location.Valid() {
		return fmt.Errorf("invalid location choice %d", int(s.Location))
	}
	if !s.Style.Valid() {
		return fmt.Errorf("invalid style choice %d", int(s.Style))
	}
	if !s.Resolution.Valid() {
		return fmt.Errorf("invalid resolution %q", s.Resolution)
	}
	return nil
}

const (
	framingClause  = "Generate a high-quality, realistic product photography image of the item in the attached image."
	preserveClause = "Important: Keep the main product identical to the input image. Improve lighting and composition suitable for a high-end marketplace listing."
)

func subjectClause(m ModelChoice) string {
	if m == NoModel {
		return "- Subject: The product by itself."
	}
	return fmt.Sprintf("- Subject: The product worn/held by a %s.", m)
}

// Clauses returns the pro-generation prompt clauses in their fixed order:
// framing, subject, environment, aesthetics, preservation constraint and,
// only when custom details were given, the additional instructions.
func Clauses(s Selection) []string {
	clauses := []string{
		framingClause,
		subjectClause(s.Model),
		fmt.Sprintf("- Environment/Background: %s.", s.Location),
		fmt.Sprintf("- Aesthetics/Vibe: %s.", s.Style),
		preserveClause,
	}
	if custom := strings.TrimSpace(s.CustomDetails); custom != "" {
		clauses = append(clauses, "Additional Instructions: "+custom)
	}
	return clauses
}

// ComposeGeneration builds the full pro-generation prompt.
func ComposeGeneration(s Selection) string {
	c := Clauses(s)
	var b strings.Builder
	b.WriteString(c[0])
	b.WriteString("\n\nConfiguration:\n")
	b.WriteString(strings.Join(c[1:4], "\n"))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(c[4:], "\n"))
	return b.String()
}
