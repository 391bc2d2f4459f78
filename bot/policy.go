package bot

import (
	randv2 "math/rand/v2"
)

type Action int

const (
	ActionComment Action = iota
	ActionUpvote
)

func (a Action) String() string {
	switch a {
	case ActionComment:
		return "comment"
	case ActionUpvote:
		return "upvote"
	default:
		return "unknown"
	}
}

// Rand is the randomness the bot draws from. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return randv2.IntN(n) }
func (globalRand) Float64() float64 { return randv2.Float64() }

// DefaultRand draws from the process-wide math/rand/v2 source.
var DefaultRand Rand = globalRand{}

// Policy picks what to do with a relevant post. It is stateless: every
// choice is an independent uniform draw.
type Policy struct {
	rand Rand
}

func NewPolicy(r Rand) *Policy {
	if r == nil {
		r = DefaultRand
	}
	return &Policy{rand: r}
}

func (p *Policy) Choose() Action {
	if p.rand.IntN(2) == 0 {
		return ActionComment
	}
	return ActionUpvote
}
