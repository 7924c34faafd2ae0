package calendar

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// Grain is the width of an aggregation bucket.
type Grain string

const (
	GrainHour  Grain = "hour"
	GrainDay   Grain = "day"
	GrainMonth Grain = "month"
)

// ParseGrain accepts the grain names case-insensitively.
func ParseGrain(s string) (Grain, error) {
	g := Grain(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedGrain, s)
	}
	return g, nil
}

// Valid reports whether g is one of the supported grains.
func (g Grain) Valid() bool {
	switch g {
	case GrainHour, GrainDay, GrainMonth:
		return true
	}
	return false
}
