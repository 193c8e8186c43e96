package wheel

import (
	"fmt"
	"math"
	"sort"

	"loyaltyplane/pkg/errutil"
)

// ProbabilityTolerance is how far the active items' probability sum may
// drift from 1.0 before the configuration is rejected.
const ProbabilityTolerance = 0.001

// Rand is the random source injected into SelectItem. Deterministic tests
// pass a seeded *math/rand.Rand.
type Rand interface {
	Float64() float64
}

// ValidateProbabilities checks that every active item has a probability in
// (0, 1] and that the active probabilities sum to 1.0 within tolerance.
func ValidateProbabilities(items []WheelItem) error {
	var total float64
	var active int

	for _, item := range items {
		if !item.Active {
			continue
		}
		active++
		if item.Probability <= 0 || item.Probability > 1 {
			return errutil.ValidationFailed(
				fmt.Sprintf("item %q probability must be in (0, 1], got %v", item.Name, item.Probability), nil)
		}
		total += item.Probability
	}

	if active == 0 {
		return errutil.ValidationFailed("wheel has no active items", nil)
	}

	if math.Abs(total-1.0) > ProbabilityTolerance {
		return errutil.ValidationFailed(
			fmt.Sprintf("active item probabilities sum to %v, expected 1.0", total), nil)
	}

	return nil
}

// SelectItem draws one active item with probability proportional to its
// configured weight. The draw walks items in position order accumulating
// probabilities against a uniform value in [0, total). If floating point
// rounding leaves the draw past the last cumulative bound, the last active
// item wins; that is a fallback, not an error.
//
// Pure given items and rng, so selection is deterministic under a seeded
// source.
func SelectItem(items []WheelItem, rng Rand) (*WheelItem, error) {
	active := make([]WheelItem, 0, len(items))
	for _, item := range items {
		if item.Active {
			active = append(active, item)
		}
	}
	if len(active) == 0 {
		return nil, errutil.ValidationFailed("wheel has no active items", nil)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Position < active[j].Position
	})

	var total float64
	for _, item := range active {
		total += item.Probability
	}

	r := rng.Float64() * total

	var cumulative float64
	for i := range active {
		cumulative += active[i].Probability
		if r < cumulative {
			return &active[i], nil
		}
	}

	return &active[len(active)-1], nil
}
