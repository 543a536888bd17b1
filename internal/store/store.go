/*
PURPOSE:
  Persists scored predictions so runs can be compared across models and
  sessions.

REQUIREMENTS:
  User-specified:
  - Save one or many predictions, list them per model, list everything
    grouped by model, delete everything.

  Implementation-discovered:
  - Model names become part of keys, so they are sanitized.
  - Both backends return predictions in timestamp order so reports are stable.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Runner), internal/server, internal/cli (report)
  - Backends: sqlite.go (mattn/go-sqlite3), badger.go (dgraph-io/badger/v4)

ERROR HANDLING:
  - Backend errors are wrapped with the operation name.
  - ErrUnknownBackend for a misconfigured backend name.

USAGE:
  s, err := store.Open("sqlite", "out/predictions.db")
  id, err := s.Save(ctx, prediction)
*/

package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend.
var ErrUnknownBackend = errors.New("unknown store backend")

// Store is a prediction repository.
type Store interface {
	// Save stores p and returns its id. An empty p.ID gets a new UUID.
	Save(ctx context.Context, p model.Prediction) (string, error)
	SaveAll(ctx context.Context, ps []model.Prediction) (int, error)
	ListByModel(ctx context.Context, modelName string) ([]model.Prediction, error)
	ListGrouped(ctx context.Context) (map[string][]model.Prediction, error)
	// DeleteAll removes every prediction and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
	Close() error
}

// Open opens the named backend at path. For badger an empty path runs in
// memory.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendSQLite, "sqlite3":
		return OpenSQLite(path)
	case BackendBadger:
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Sanitize maps a model name to a key-safe form: lowercase, with every
// character outside [a-z0-9_] replaced by "_".
func Sanitize(modelName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, modelName)
}

func withID(p model.Prediction) model.Prediction {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p
}

func sortPredictions(ps []model.Prediction) {
	slices.SortStableFunc(ps, func(a, b model.Prediction) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.ID, b.Item.ID)
	})
}

func group(ps []model.Prediction) map[string][]model.Prediction {
	out := make(map[string][]model.Prediction)
	for _, p := range ps {
		out[p.Model] = append(out[p.Model], p)
	}
	for _, g := range out {
		sortPredictions(g)
	}
	return out
}
