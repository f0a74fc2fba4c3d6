package memory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/samirrijal/signalmap/internal/core/ports"
)

// Bounds of the six-digit test ids handed to speed-test clients.
const (
	MinRandomID = 100000
	MaxRandomID = 999999
)

// RandomGenerator draws ids uniformly from [MinRandomID, MaxRandomID].
// Collisions between concurrent tests are possible.
type RandomGenerator struct{}

// NewRandomGenerator returns a RandomGenerator.
func NewRandomGenerator() *RandomGenerator { return &RandomGenerator{} }

// Next returns a random six-digit id.
func (RandomGenerator) Next() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxRandomID-MinRandomID+1))
	if err != nil {
		return 0, err
	}
	return MinRandomID + n.Int64(), nil
}

// SequenceGenerator hands out strictly increasing ids.
type SequenceGenerator struct {
	next atomic.Int64
}

// NewSequenceGenerator seeds the sequence from the wall clock so ids do not
// repeat across restarts.
func NewSequenceGenerator(now time.Time) *SequenceGenerator {
	g := &SequenceGenerator{}
	g.next.Store(now.UnixMilli())
	return g
}

// Next returns the next id in the sequence.
func (g *SequenceGenerator) Next() (int64, error) {
	return g.next.Add(1), nil
}

// NewGenerator returns the generator for a configured strategy.
func NewGenerator(strategy string, now time.Time) (ports.IDGenerator, error) {
	switch strategy {
	case "", "random":
		return NewRandomGenerator(), nil
	case "sequence":
		return NewSequenceGenerator(now), nil
	default:
		return nil, fmt.Errorf("unknown identity strategy %q", strategy)
	}
}
