// Package ai drives synthetic debaters. A Generator produces argument
// text for the participant holding the floor; a Synthesizer renders it
// as speech audio. Per-participant aiConfig is interpreted only here;
// everything upstream passes it through opaque.
package ai

import (
	"context"
	"strings"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/logging"
)

// Request carries everything a Generator needs for one turn.
type Request struct {
	Topic   string
	Phase   debate.Phase
	Speaker debate.Participant

	// Transcript is the session history up to this turn, oldest first.
	Transcript []debate.Message

	// MaxLength bounds the generated text in bytes. Zero means unbounded.
	MaxLength int
}

// Generator produces the argument text for one turn.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Synthesizer renders generated text as speech audio. Implementations
// return nil audio to skip synthesis.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Provider bundles generation and synthesis behind one backend.
type Provider interface {
	Generator
	Synthesizer
}

// NewFromConfig builds a Provider from configuration. Without an API
// key the canned provider is returned, which keeps development setups
// working offline.
func NewFromConfig(cfg config.AIConfig, log *logging.Logger) Provider {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Canned{}
	}
	return NewOpenAI(cfg, log)
}
