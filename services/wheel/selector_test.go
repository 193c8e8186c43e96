package wheel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func items(probs ...float64) []WheelItem {
	out := make([]WheelItem, 0, len(probs))
	for i, p := range probs {
		out = append(out, WheelItem{
			ID:          string(rune('a' + i)),
			Name:        string(rune('a' + i)),
			Type:        ItemPoints,
			Probability: p,
			Active:      true,
			Position:    i,
		})
	}
	return out
}

func TestValidateProbabilities(t *testing.T) {
	require.NoError(t, ValidateProbabilities(items(0.5, 0.3, 0.2)))
	require.NoError(t, ValidateProbabilities(items(1.0)))

	// drift inside the tolerance is accepted
	require.NoError(t, ValidateProbabilities(items(0.5, 0.3, 0.1995)))
	require.NoError(t, ValidateProbabilities(items(0.5, 0.3, 0.2005)))

	require.Error(t, ValidateProbabilities(items(0.5)))
	require.Error(t, ValidateProbabilities(items(0.5, 0.3, 0.19)))
	require.Error(t, ValidateProbabilities(items(0.6, 0.6)))
	require.Error(t, ValidateProbabilities(items(0.5, 0.5, 0)))
	require.Error(t, ValidateProbabilities(items(1.5)))
	require.Error(t, ValidateProbabilities(nil))
}

func TestValidateProbabilitiesIgnoresInactive(t *testing.T) {
	set := items(0.5, 0.5)
	set = append(set, WheelItem{ID: "off", Probability: 0.9, Active: false})

	require.NoError(t, ValidateProbabilities(set))
}

func TestSelectItemDeterministic(t *testing.T) {
	set := items(0.5, 0.3, 0.2)

	first, err := SelectItem(set, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	second, err := SelectItem(set, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestSelectItemNeverPicksInactive(t *testing.T) {
	set := items(0.5, 0.5)
	set = append(set, WheelItem{ID: "off", Name: "off", Probability: 0.9, Active: false})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		item, err := SelectItem(set, rng)
		require.NoError(t, err)
		require.NotEqual(t, "off", item.ID)
	}
}

func TestSelectItemNoActiveItems(t *testing.T) {
	_, err := SelectItem([]WheelItem{{ID: "off", Active: false}}, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestSelectItemFallsBackToLastActive(t *testing.T) {
	set := items(0.5, 0.3, 0.2)

	// a draw at the upper bound lands past every cumulative bucket
	item, err := SelectItem(set, fixedRand(1.0))
	require.NoError(t, err)
	require.Equal(t, set[2].ID, item.ID)
}

func TestSelectItemDistribution(t *testing.T) {
	set := items(0.5, 0.3, 0.2)
	rng := rand.New(rand.NewSource(1))

	const draws = 100_000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		item, err := SelectItem(set, rng)
		require.NoError(t, err)
		counts[item.ID]++
	}

	for _, item := range set {
		observed := float64(counts[item.ID]) / draws
		require.InDeltaf(t, item.Probability, observed, 0.01,
			"item %s: expected %.2f, observed %.4f", item.ID, item.Probability, observed)
	}
}
