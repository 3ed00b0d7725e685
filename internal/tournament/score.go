package tournament

import "math"

// EffectiveTotal computes the score used for ranking.
//
// BOOM multiplies the raw sum and floors the result; DOUBLE counts the best game twice.
// REVERSE and NONE leave the raw sum unchanged.
func EffectiveTotal(scores []int, effect *WheelEffect) int {
	raw := 0
	best := 0
	for i, s := range scores {
		raw += s
		if i == 0 || s > best {
			best = s
		}
	}
	if effect == nil {
		return raw
	}
	switch effect.Type {
	case EffectBoom:
		if effect.Value != 1 {
			return int(math.Floor(float64(raw) * effect.Value))
		}
	case EffectDouble:
		if len(scores) > 0 {
			return raw + best
		}
	}
	return raw
}

// EffectiveTotal recomputes the player's total from scores and wheel effect.
func (p Player) EffectiveTotal() int {
	return EffectiveTotal(p.Scores, p.WheelEffect)
}

// withScore returns a copy of scores with game set, growing with zeros for skipped games.
func withScore(scores []int, game, score int) []int {
	n := len(scores)
	if game >= n {
		n = game + 1
	}
	out := make([]int, n)
	copy(out, scores)
	out[game] = score
	return out
}
