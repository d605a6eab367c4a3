package engine

import (
	"math/rand"
	"time"
)

// RandomSource supplies the draw for anonymous assignment, where no subject
// id is available for deterministic hashing. Tests inject a seeded source.
type RandomSource interface {
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}

func defaultRandomSource() RandomSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
