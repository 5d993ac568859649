package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
)

// Store persists debate sessions. Implementations must be safe for
// concurrent use; the registry calls Save from one goroutine per session
// but many sessions share one store.
type Store interface {
	// Create persists a brand-new session.
	// Returns ErrSessionExists if the id is already taken.
	Create(ctx context.Context, s *debate.Session) error

	// Save persists a session snapshot with optimistic concurrency: the
	// write succeeds only if the stored version is strictly lower than
	// the snapshot's Version. Returns ErrVersionConflict otherwise and
	// ErrSessionNotFound if the session was never created.
	Save(ctx context.Context, s *debate.Session) error

	// Load retrieves a session by id. The returned session is a private
	// copy the caller may mutate freely.
	// Returns ErrSessionNotFound if the id does not exist.
	Load(ctx context.Context, id string) (*debate.Session, error)

	// List returns summaries of stored sessions, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a session and its index entries.
	// Returns ErrSessionNotFound if the id does not exist.
	Delete(ctx context.Context, id string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources. The store rejects all calls
	// afterwards with ErrStoreClosed.
	Close() error
}

// Summary is a lightweight listing row. Stores produce it without
// loading full transcripts where the backend allows.
type Summary struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Phase        debate.Phase  `json:"phase"`
	Status       debate.Status `json:"status"`
	Participants int           `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Open builds the session store named by cfg.Backend. The context bounds
// initial connectivity checks for networked backends.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return OpenRedis(ctx, cfg.Redis)
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// summarize builds a listing row from a full session document.
func summarize(s *debate.Session) Summary {
	return Summary{
		ID:           s.ID,
		Topic:        s.Topic,
		Phase:        s.Phase,
		Status:       s.Status,
		Participants: len(s.Participants),
		CreatedAt:    s.CreatedAt,
	}
}

// marshalSession encodes a session document for storage.
func marshalSession(s *debate.Session) ([]byte, error) {
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, errors.NewPersistenceError("encode session", err)
	}
	return data, nil
}

// unmarshalSession decodes a stored session document.
func unmarshalSession(data []byte) (*debate.Session, error) {
	var s debate.Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, errors.NewPersistenceError("decode session", err)
	}
	return &s, nil
}
