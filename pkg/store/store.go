package store

import (
	"errors"

	"gameshelf/pkg/domain"
)

// ErrNotFound is returned when no record exists with the given id under the
// given owner. A record owned by someone else reports the same error, so a
// caller can never learn whether a foreign id exists.
var ErrNotFound = errors.New("game not found")

// Store defines owner-scoped persistence for game records. Every operation
// takes the owner id resolved by the access layer; there is no unscoped path.
//
// UpdateGame with an is_current=true patch must demote every other record of
// the same owner atomically: two near-simultaneous now-playing updates must
// never leave two current records. DeleteGame of the current game promotes
// the most recently played survivor inside the same transaction.
type Store interface {
	ListGames(ownerID string) ([]domain.Game, error)
	GetGame(ownerID string, id int64) (domain.Game, error)
	CreateGame(ownerID string, in domain.CreateInput) (domain.Game, error)
	UpdateGame(ownerID string, id int64, patch domain.GamePatch) (domain.Game, error)
	DeleteGame(ownerID string, id int64) error
}
