package ai

import (
	"context"
	"fmt"

	"github.com/rostralabs/rostra/internal/debate"
)

// Canned is the offline Provider: deterministic placeholder arguments
// and no audio. It is the default when no API key is configured, and
// what tests run against.
type Canned struct{}

func (Canned) Generate(_ context.Context, req Request) (string, error) {
	side := "affirmative"
	if req.Speaker.Team == debate.TeamCon {
		side = "negative"
	}
	text := fmt.Sprintf("Speaking for the %s side on %q, we hold our position through %s.",
		side, req.Topic, req.Phase)
	return truncate(text, req.MaxLength), nil
}

func (Canned) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, nil
}
