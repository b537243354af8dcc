package prompt

import (
	"fmt"
	"strings"
)

// ModelChoice selects who, if anyone, presents the product.
type ModelChoice int

const (
	NoModel ModelChoice = iota
	FemaleModel
	MaleModel
	HandModel
)

var modelLabels = []string{
	"No Model (Product Only)",
	"Female Model",
	"Male Model",
	"Hand Model (Close up)",
}

var modelKeys = []string{"none", "female", "male", "hand"}

// ModelChoices lists every model choice in display order.
var ModelChoices = []ModelChoice{NoModel, FemaleModel, MaleModel, HandModel}

func (m ModelChoice) String() string {
	if m < 0 || int(m) >= len(modelLabels) {
		return fmt.Sprintf("ModelChoice(%d)", int(m))
	}
	return modelLabels[m]
}

// Key returns the stable identifier used in callback data and JSON.
func (m ModelChoice) Key() string { return keyOf(modelKeys, int(m)) }

func (m ModelChoice) Valid() bool { return m >= 0 && int(m) < len(modelLabels) }

func (m ModelChoice) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid model choice %d", int(m))
	}
	return []byte(m.Key()), nil
}

func (m *ModelChoice) UnmarshalText(b []byte) error {
	v, err := ParseModelChoice(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseModelChoice accepts either a key ("hand") or a label.
func ParseModelChoice(s string) (ModelChoice, error) {
	i, ok := lookup(modelKeys, modelLabels, s)
	if !ok {
		return 0, fmt.Errorf("unknown model choice %q", s)
	}
	return ModelChoice(i), nil
}

// LocationChoice selects the environment or background of the shot.
type LocationChoice int

const (
	ProfessionalStudio LocationChoice = iota
	CozyLivingRoom
	UrbanStreet
	NaturePark
	MinimalistConcrete
	LuxuryInterior
)

var locationLabels = []string{
	"Professional Studio",
	"Cozy Living Room",
	"Urban Street / City",
	"Nature / Park",
	"Minimalist Concrete",
	"Luxury Interior",
}

var locationKeys = []string{"studio", "living-room", "urban", "nature", "concrete", "luxury"}

var LocationChoices = []LocationChoice{
	ProfessionalStudio, CozyLivingRoom, UrbanStreet, NaturePark, MinimalistConcrete, LuxuryInterior,
}

func (l LocationChoice) String() string {
	if l < 0 || int(l) >= len(locationLabels) {
		return fmt.Sprintf("LocationChoice(%d)", int(l))
	}
	return locationLabels[l]
}

func (l LocationChoice) Key() string { return keyOf(locationKeys, int(l)) }

func (l LocationChoice) Valid() bool { return l >= 0 && int(l) < len(locationLabels) }

func (l LocationChoice) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid location choice %d", int(l))
	}
	return []byte(l.Key()), nil
}

func (l *LocationChoice) UnmarshalText(b []byte) error {
	v, err := ParseLocationChoice(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func ParseLocationChoice(s string) (LocationChoice, error) {
	i, ok := lookup(locationKeys, locationLabels, s)
	if !ok {
		return 0, fmt.Errorf("unknown location choice %q", s)
	}
	return LocationChoice(i), nil
}

// StyleChoice selects the aesthetic of the shot.
type StyleChoice int

const (
	NeutralClean StyleChoice = iota
	Streetwear
	VintageRetro
	ProfessionalFormal
	BohoArtistic
)

var styleLabels = []string{
	"Neutral & Clean",
	"Streetwear / Trendy",
	"Vintage / Retro",
	"Professional / Formal",
	"Boho / Artistic",
}

var styleKeys = []string{"neutral", "streetwear", "vintage", "formal", "boho"}

var StyleChoices = []StyleChoice{NeutralClean, Streetwear, VintageRetro, ProfessionalFormal, BohoArtistic}

func (s StyleChoice) String() string {
	if s < 0 || int(s) >= len(styleLabels) {
		return fmt.Sprintf("StyleChoice(%d)", int(s))
	}
	return styleLabels[s]
}

func (s StyleChoice) Key() string { return keyOf(styleKeys, int(s)) }

func (s StyleChoice) Valid() bool { return s >= 0 && int(s) < len(styleLabels) }

func (s StyleChoice) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid style choice %d", int(s))
	}
	return []byte(s.Key()), nil
}

func (s *StyleChoice) UnmarshalText(b []byte) error {
	v, err := ParseStyleChoice(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStyleChoice(s string) (StyleChoice, error) {
	i, ok := lookup(styleKeys, styleLabels, s)
	if !ok {
		return 0, fmt.Errorf("unknown style choice %q", s)
	}
	return StyleChoice(i), nil
}

func keyOf(keys []string, i int) string {
	if i < 0 || i >= len(keys) {
		return ""
	}
	return keys[i]
}

func lookup(keys, labels []string, s string) (int, bool) {
	s = strings.TrimSpace(s)
	for i := range keys {
		if strings.EqualFold(s, keys[i]) || strings.EqualFold(s, labels[i]) {
			return i, true
		}
	}
	return 0, false
}
