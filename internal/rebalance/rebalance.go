// Package rebalance redistributes probability mass across a sibling
// set after one member's value changed. The three sibling shapes
// (outgoing edges of a node, conditional entries sharing a condition,
// case variants) run the same algorithm; only the value accessors and
// classification differ.
package rebalance

import (
	"fmt"
	"math"
)

// Tolerance is the floating slack allowed on the sum-to-one check.
const Tolerance = 1e-9

// Mode selects how locks and overrides are treated.
type Mode string

const (
	// ModeNormal leaves locked and overridden siblings untouched and
	// redistributes only across free ones.
	ModeNormal Mode = "normal"

	// ModeForce treats every non-origin sibling as free, clearing
	// override flags on the siblings it touches.
	ModeForce Mode = "force"
)

// Target names a sibling-set shape.
type Target string

const (
	TargetEdges        Target = "edges"
	TargetConditionals Target = "conditionals"
	TargetVariants     Target = "variants"
)

// Error reports a rebalance call that could not run at all. An
// unbalanced outcome is not an Error; see Report.Balanced.
type Error struct {
	Target  Target
	Entity  string
	Origin  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rebalance %s of %q (origin %q): %s", e.Target, e.Entity, e.Origin, e.Message)
}

// Adjustment records one sibling value rewrite.
type Adjustment struct {
	Key string
	Old float64
	New float64
}

// Report is the outcome of one rebalance call.
type Report struct {
	Target Target
	Origin string

	// Adjusted lists the siblings whose values were rewritten, in
	// sibling order.
	Adjusted []Adjustment

	// Untouched counts locked or overridden siblings left alone. When
	// every non-origin sibling is untouched the sum may diverge from 1;
	// that is reported here, never as an error.
	Untouched int

	// ClearedOverrides lists siblings whose override flag a force
	// rebalance cleared.
	ClearedOverrides []string

	// Sum is the post-rebalance mass over the whole sibling set,
	// origin included.
	Sum float64
}

// Balanced reports whether the sibling set sums to one within
// tolerance.
func (r *Report) Balanced() bool {
	return math.Abs(r.Sum-1) <= Tolerance
}

// member is one non-origin sibling presented to the core algorithm.
type member struct {
	key        string
	value      float64
	locked     bool
	overridden bool
}

// redistribute computes new values for the free siblings so the set
// sums to one. Free siblings share the remainder in proportion to
// their prior values; when the prior free mass is zero the split is
// even. An origin of 0 or 1 is valid: the siblings receive the full
// remainder or nothing.
func redistribute(target Target, originKey string, originValue float64, others []member, mode Mode) *Report {
	rep := &Report{Target: target, Origin: originKey}

	var free []member
	fixed := 0.0
	for _, m := range others {
		if mode == ModeForce {
			if m.overridden {
				rep.ClearedOverrides = append(rep.ClearedOverrides, m.key)
			}
			free = append(free, m)
			continue
		}
		if m.locked || m.overridden {
			rep.Untouched++
			fixed += m.value
			continue
		}
		free = append(free, m)
	}

	rep.Sum = originValue + fixed
	if len(free) == 0 {
		return rep
	}

	remaining := 1 - originValue - fixed
	if remaining < 0 {
		remaining = 0
	}
	priorSum := 0.0
	for _, m := range free {
		priorSum += m.value
	}
	for _, m := range free {
		var next float64
		if priorSum > 0 {
			next = remaining * m.value / priorSum
		} else {
			next = remaining / float64(len(free))
		}
		rep.Adjusted = append(rep.Adjusted, Adjustment{Key: m.key, Old: m.value, New: next})
		rep.Sum += next
	}
	return rep
}
