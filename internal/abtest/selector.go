// Package abtest selects destinations for A/B-tested links by weight.
package abtest

import (
	"math/rand/v2"

	"github.com/BotCoder254/URLBriefr/internal/models"
)

// Source yields uniform random integers. *rand.Rand from math/rand/v2
// satisfies it; tests inject a seeded source for reproducible draws.
type Source interface {
	IntN(n int) int
}

// Selector picks a variant with probability proportional to its weight.
type Selector struct {
	src Source
}

// NewSelector returns a Selector drawing from src. A nil src falls back to
// a ChaCha8 generator seeded from the OS.
func NewSelector(src Source) *Selector {
	if src == nil {
		src = rand.New(rand.NewChaCha8(seed()))
	}
	return &Selector{src: src}
}

func seed() [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = byte(rand.UintN(256))
	}
	return s
}

// ValidSet reports whether the variants form a usable A/B configuration:
// at least two variants whose weights sum to exactly 100, each in 1..100.
// The redirect path falls back to the link's primary destination when this
// does not hold.
func ValidSet(variants []models.ABTestVariant) bool {
	if len(variants) < 2 {
		return false
	}
	total := 0
	for _, v := range variants {
		if v.Weight < 1 || v.Weight > 100 {
			return false
		}
		total += v.Weight
	}
	return total == 100
}

// Select draws a variant. Each variant's weight acts as a ticket count: a
// uniform draw in [1, total] is walked against cumulative weights in slice
// order. Returns nil for an empty or zero-weight slice.
func (s *Selector) Select(variants []models.ABTestVariant) *models.ABTestVariant {
	total := 0
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total == 0 {
		return nil
	}

	draw := s.src.IntN(total) + 1
	cumulative := 0
	for i := range variants {
		if variants[i].Weight <= 0 {
			continue
		}
		cumulative += variants[i].Weight
		if cumulative >= draw {
			return &variants[i]
		}
	}
	return &variants[len(variants)-1]
}
