// Package speech holds the speech-synthesis collaborator contract and the
// HTTP clients behind it. Wire formats of the individual services are kept
// out of the pipeline: every client answers the same Generate call.
package speech

import "context"

// Audio is the result of one synthesis call.
type Audio struct {
	Data            []byte
	DurationSeconds float64
}

// Synthesizer is one hop of the speech fallback chain.
type Synthesizer interface {
	Name() string
	// Configured reports whether the provider has the credentials or
	// endpoint it needs. Unconfigured hops are skipped by the resolver.
	Configured() bool
	Generate(ctx context.Context, text, voiceID string) (Audio, error)
}
