package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickEdit(t *testing.T) {
	got, err := QuickEdit("Remove the background")
	require.NoError(t, err)
	assert.Equal(t, "Remove the background", got)

	got, err = QuickEdit("make it pop ")
	require.NoError(t, err)
	assert.Equal(t, "make it pop ", got, "typed phrase is passed through as is")

	_, err = QuickEdit("   ")
	assert.ErrorIs(t, err, ErrEmptyInstruction)
}

func assertInOrder(t *testing.T, s string, parts ...string) {
	t.Helper()
	last := -1
	for _, p := range parts {
		idx := strings.Index(s, p)
		require.NotEqual(t, -1, idx, "missing %q", p)
		assert.Greater(t, idx, last, "%q out of order", p)
		last = idx
	}
}

func TestComposeGeneration_NoCustomDetails(t *testing.T) {
	sel := Selection{
		Model:      NoModel,
		Location:   ProfessionalStudio,
		Style:      NeutralClean,
		Resolution: listing.Resolution1K,
	}
	out := ComposeGeneration(sel)

	assertInOrder(t, out,
		framingClause,
		"Subject: The product by itself.",
		"Environment/Background: Professional Studio.",
		"Aesthetics/Vibe: Neutral & Clean.",
		preserveClause,
	)
	assert.NotContains(t, out, "Additional Instructions")
	assert.True(t, strings.HasSuffix(out, preserveClause))
}

func TestComposeGeneration_WithCustomDetails(t *testing.T) {
	sel := Selection{
		Model:         NoModel,
		Location:      ProfessionalStudio,
		Style:         NeutralClean,
		CustomDetails: "golden hour lighting",
		Resolution:    listing.Resolution1K,
	}
	out := ComposeGeneration(sel)

	assertInOrder(t, out,
		framingClause,
		"Subject:",
		"Environment/Background:",
		"Aesthetics/Vibe:",
		preserveClause,
		"Additional Instructions: golden hour lighting",
	)
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[len(lines)-1], "golden hour lighting")
}

func TestComposeGeneration_WhitespaceCustomDetailsIsOmitted(t *testing.T) {
	sel := DefaultSelection()
	sel.CustomDetails = "  \n "
	assert.NotContains(t, ComposeGeneration(sel), "Additional Instructions")
}

func TestClauses_ModelSubject(t *testing.T) {
	sel := DefaultSelection()
	sel.Model = HandModel
	sel.Location = UrbanStreet
	sel.Style = VintageRetro

	c := Clauses(sel)
	require.Len(t, c, 5)
	assert.Equal(t, "- Subject: The product worn/held by a Hand Model (Close up).", c[1])
	assert.Equal(t, "- Environment/Background: Urban Street / City.", c[2])
	assert.Equal(t, "- Aesthetics/Vibe: Vintage / Retro.", c[3])
}

func TestComposeGeneration_Deterministic(t *testing.T) {
	sel := DefaultSelection()
	sel.CustomDetails = "red shoes"
	assert.Equal(t, ComposeGeneration(sel), ComposeGeneration(sel))
}

func TestParseChoices(t *testing.T) {
	m, err := ParseModelChoice("Female Model")
	require.NoError(t, err)
	assert.Equal(t, FemaleModel, m)

	m, err = ParseModelChoice("hand")
	require.NoError(t, err)
	assert.Equal(t, HandModel, m)

	l, err := ParseLocationChoice("nature / park")
	require.NoError(t, err)
	assert.Equal(t, NaturePark, l)

	s, err := ParseStyleChoice("boho")
	require.NoError(t, err)
	assert.Equal(t, BohoArtistic, s)

	_, err = ParseStyleChoice("gothic")
	assert.Error(t, err)
}

func TestSelection_JSON(t *testing.T) {
	in := `{"model":"male","location":"Luxury Interior","style":"formal","customDetails":"x","resolution":"4K"}`
	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(in), &sel))
	assert.Equal(t, MaleModel, sel.Model)
	assert.Equal(t, LuxuryInterior, sel.Location)
	assert.Equal(t, ProfessionalFormal, sel.Style)
	assert.Equal(t, listing.Resolution4K, sel.Resolution)
	require.NoError(t, sel.Validate())

	out, err := json.Marshal(sel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"male","location":"luxury","style":"formal","customDetails":"x","resolution":"4K"}`, string(out))
}

func TestSelection_ValidateRejectsUnknown(t *testing.T) {
	sel := DefaultSelection()
	sel.Resolution = "8K"
	assert.Error(t, sel.Validate())

	sel = DefaultSelection()
	sel.Style = StyleChoice(42)
	assert.Error(t, sel.Validate())
}
