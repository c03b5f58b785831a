package testutil

// FixedIDGenerator returns the same session id every time.
//
// This enables deterministic session audit rows and golden transcripts.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-session-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed session id.
//
// Implements engine.SessionIDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
