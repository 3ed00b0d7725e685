package tournament

import "math/rand/v2"

// Randomizer is the source of wheel draws. *rand.Rand satisfies it.
type Randomizer interface {
	IntN(n int) int
	Float64() float64
}

// NewRandomizer returns a randomizer seeded from the runtime's entropy.
func NewRandomizer() Randomizer {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

var (
	DoubleChance = WheelEffect{Type: EffectDouble, Value: 2, Desc: "DOUBLE CHANCE (Best x2)"}
	BoomUp       = WheelEffect{Type: EffectBoom, Value: 1.15, Desc: "BOOM (+15%)"}
	BoomDown     = WheelEffect{Type: EffectBoom, Value: 0.90, Desc: "BOOM (-10%)"}
	ReverseBonus = WheelEffect{Type: EffectReverse, Value: 1.1, Desc: "REVERSE (+10%)"}
)

// boomDownChance is the probability a BOOM draw is the negative variant.
const boomDownChance = 0.4

// Assignment gives an effect to one player.
type Assignment struct {
	PlayerID string
	Effect   WheelEffect
}

// WheelOutcome is the result of one spin in a room.
type WheelOutcome struct {
	Room Room
	// Reset lists every player in the room; their previous effects are cleared first.
	Reset []string
	Lucky Assignment
	// CatchUp is set when the last-ranked player is not the lucky one.
	CatchUp *Assignment
}

// Assignments returns the lucky and catch-up assignments in write order.
func (o WheelOutcome) Assignments() []Assignment {
	out := []Assignment{o.Lucky}
	if o.CatchUp != nil {
		out = append(out, *o.CatchUp)
	}
	return out
}

// SpinWheel draws the effects for a room from its pre-spin ranking.
// It reports false when the room is empty.
//
// Draw order is category, then lucky index, then (for BOOM) its sign.
func SpinWheel(ranked []Player, rng Randomizer) (WheelOutcome, bool) {
	if len(ranked) == 0 {
		return WheelOutcome{}, false
	}
	out := WheelOutcome{Room: ranked[0].Room}
	for _, p := range ranked {
		out.Reset = append(out.Reset, p.ID)
	}

	category := rng.IntN(2)
	lucky := ranked[rng.IntN(len(ranked))]

	effect := DoubleChance
	if category == 1 {
		effect = BoomUp
		if rng.Float64() <= boomDownChance {
			effect = BoomDown
		}
	}
	out.Lucky = Assignment{PlayerID: lucky.ID, Effect: effect}

	last := ranked[len(ranked)-1]
	if len(ranked) > 1 && last.ID != lucky.ID {
		out.CatchUp = &Assignment{PlayerID: last.ID, Effect: ReverseBonus}
	}
	return out, true
}

// PickMode draws a wheel mode uniformly from the catalog.
func PickMode(modes []WheelMode, rng Randomizer) (WheelMode, bool) {
	if len(modes) == 0 {
		return WheelMode{}, false
	}
	return modes[rng.IntN(len(modes))], true
}
