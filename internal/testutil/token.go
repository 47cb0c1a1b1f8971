package testutil

// ConstantTokenGenerator generates the same run token every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same ConstantTokenGenerator produces
// byte-identical reports and logs.
//
// Unlike engine.FixedGenerator which returns tokens in sequence and panics
// when exhausted, this generator never runs out. This is useful for
// scenarios that run an unknown number of sweeps.
//
// Thread-safety: ConstantTokenGenerator is stateless and safe for concurrent use.
type ConstantTokenGenerator struct {
	token string
}

// NewConstantTokenGenerator creates a new constant run token generator.
//
// If token is empty, Generate() returns "test-run-default".
func NewConstantTokenGenerator(token string) *ConstantTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &ConstantTokenGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements engine.RunTokenGenerator.
func (g *ConstantTokenGenerator) Generate() string {
	return g.token
}
