package pricing

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandSource hands out a fresh generator per pricing call.
// A fixed seed yields the same stream on every call, which makes bumped
// revaluations share their random numbers.
type RandSource interface {
	New() *rand.Rand
	Deterministic() bool
}

// FixedSeed reproduces the same draws on every call.
type FixedSeed uint64

func (s FixedSeed) New() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(s), uint64(s)^0x9e3779b97f4a7c15))
}

func (FixedSeed) Deterministic() bool { return true }

// Entropy seeds every call from the operating system.
type Entropy struct{}

func (Entropy) New() *rand.Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}

func (Entropy) Deterministic() bool { return false }

// SourceFor returns FixedSeed(*seed) or Entropy when seed is nil.
func SourceFor(seed *uint64) RandSource {
	if seed == nil {
		return Entropy{}
	}
	return FixedSeed(*seed)
}
