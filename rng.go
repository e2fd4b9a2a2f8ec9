package main

import (
	"time"

	"github.com/dgryski/go-wyhash"
	"pgregory.net/rand"
)

// Rng is the workload random source. Seeding with the same string always
// produces the same sequence, so a run with a fixed --seed is reproducible
// down to the per-session request mix and think times.
type Rng struct {
	rng *rand.Rand
}

func NewRng(s string) Rng {
	return Rng{rand.New(wyhash.Hash([]byte(s), 2467825690))}
}

func (r Rng) Intn(n int) int {
	return r.rng.Intn(n)
}

func (r Rng) Choice(a []string) string {
	return a[r.rng.Intn(len(a))]
}

// Chance returns true with probability p.
func (r Rng) Chance(p float64) bool {
	return r.rng.Float64() < p
}

func (r Rng) Float(min, max float64) float64 {
	return r.rng.Float64()*(max-min) + min
}

// Duration returns a duration drawn uniformly from [min, max).
func (r Rng) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.rng.Int63n(int64(max-min)))
}
