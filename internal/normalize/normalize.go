// Package normalize converts arbitrary non-negative weights into integer
// percentages that sum to exactly 100. Every lookup path (AI-ranked assets,
// wallet balances in USD, chat-edited allocations, buddy contributions) runs
// through the same transform so rounding behavior never diverges between call
// sites.
package normalize

import (
	"fmt"
	"math"

	"copyfolio/internal/entity"
)

// Percentages maps weights w_1..w_n to integer percentages aligned
// index-for-index with the input.
//
// Rules:
//   - n = 0 returns an empty slice ("no portfolio").
//   - A negative or non-finite weight fails with a validation error.
//   - If all weights are zero, each item gets floor(100/n) and the remainder
//     100 mod n is handed out one unit at a time starting from the first item.
//   - Otherwise each share is round-half-up of w_i/T*100, and any difference
//     from 100 is applied entirely to the first item. The single-point
//     correction keeps the pass deterministic and O(n); it can push the first
//     percentage negative when n is large and the first weight is tiny, which
//     is accepted for compatibility with the allocation flows built on top.
func Percentages(weights []float64) ([]int, error) {
	if len(weights) == 0 {
		return []int{}, nil
	}

	var total float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, entity.NewError(entity.CodeValidation, fmt.Sprintf("weight at index %d is not finite", i))
		}
		if w < 0 {
			return nil, entity.NewError(entity.CodeValidation, fmt.Sprintf("weight at index %d is negative", i))
		}
		total += w
	}

	n := len(weights)
	out := make([]int, n)

	if total == 0 {
		base := 100 / n
		rem := 100 % n
		for i := range out {
			out[i] = base
			if i < rem {
				out[i]++
			}
		}
		return out, nil
	}

	sum := 0
	for i, w := range weights {
		out[i] = int(math.Floor(w/total*100 + 0.5))
		sum += out[i]
	}
	out[0] += 100 - sum
	return out, nil
}

// Items normalizes weighted items into portfolio items, preserving order and
// names.
func Items(items []entity.WeightedItem) ([]entity.PortfolioItem, error) {
	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = it.Weight
	}
	pcts, err := Percentages(weights)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PortfolioItem, len(items))
	for i, it := range items {
		out[i] = entity.PortfolioItem{Name: it.Name, Symbol: it.Symbol, Percentage: pcts[i]}
	}
	return out, nil
}

// Rescale re-normalizes portfolio items whose percentages drifted from 100,
// treating the current percentages as weights. Items that already sum to 100
// within the given tolerance are returned unchanged.
func Rescale(items []entity.PortfolioItem, tolerance float64) ([]entity.PortfolioItem, error) {
	var sum float64
	for _, it := range items {
		sum += float64(it.Percentage)
	}
	if len(items) == 0 || math.Abs(sum-100) <= tolerance {
		return items, nil
	}
	weighted := make([]entity.WeightedItem, len(items))
	for i, it := range items {
		weighted[i] = entity.WeightedItem{Name: it.Name, Symbol: it.Symbol, Weight: float64(it.Percentage)}
	}
	return Items(weighted)
}
