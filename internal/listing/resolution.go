package listing

import (
	"fmt"
	"strings"
)

// Resolution is the output size requested from the pro image model.
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// Resolutions lists the selectable resolutions, smallest first.
var Resolutions = []Resolution{Resolution1K, Resolution2K, Resolution4K}

func (r Resolution) Valid() bool {
	switch r {
	case Resolution1K, Resolution2K, Resolution4K:
		return true
	}
	return false
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid resolution %q (want 1K, 2K or 4K)", s)
	}
	return r, nil
}
