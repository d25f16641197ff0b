package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates predictable flow IDs: "<prefix>-0001",
// "<prefix>-0002", ...
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with the same generator produces byte-identical traces.
//
// Unlike flow.FixedGenerator, which returns a predetermined list and panics
// when it runs out, this generator never runs out.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator with the given prefix.
// If prefix is empty, "test-flow" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "test-flow"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements flow.IDGenerator interface.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
