package store

import (
	"sync"
	"time"

	"gameshelf/pkg/domain"
)

// MemoryStore keeps game records in-process. It mirrors GormStore semantics,
// including the single-current invariant and delete promotion, and backs the
// handler tests.
type MemoryStore struct {
	mu     sync.Mutex
	games  map[int64]domain.Game
	nextID int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[int64]domain.Game), nextID: 1}
}

// ListGames returns the owner's games in display order.
func (m *MemoryStore) ListGames(ownerID string) ([]domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	games := m.ownedLocked(ownerID)
	domain.SortForDisplay(games)
	return games, nil
}

// GetGame retrieves one game scoped to its owner.
func (m *MemoryStore) GetGame(ownerID string, id int64) (domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[id]
	if !ok || game.OwnerID != ownerID {
		return domain.Game{}, ErrNotFound
	}
	return game, nil
}

// CreateGame validates input, assigns the next id, and stores the record.
func (m *MemoryStore) CreateGame(ownerID string, in domain.CreateInput) (domain.Game, error) {
	game, err := domain.NewGame(ownerID, in, time.Now().UTC())
	if err != nil {
		return domain.Game{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	game.ID = m.nextID
	m.nextID++
	m.games[game.ID] = game
	return game, nil
}

// UpdateGame applies a sparse patch under the store lock, demoting siblings
// when the patch promotes the record to current.
func (m *MemoryStore) UpdateGame(ownerID string, id int64, patch domain.GamePatch) (domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[id]
	if !ok || game.OwnerID != ownerID {
		return domain.Game{}, ErrNotFound
	}
	now := time.Now().UTC()
	outcome, err := patch.Apply(&game, now)
	if err != nil {
		return domain.Game{}, err
	}
	if outcome.BecameCurrent {
		for otherID, other := range m.games {
			if otherID != id && other.OwnerID == ownerID && other.IsCurrent {
				other.IsCurrent = false
				other.UpdatedAt = now
				m.games[otherID] = other
			}
		}
	}
	m.games[id] = game
	return game, nil
}

// DeleteGame removes the record; a repeat delete fails with ErrNotFound.
// Deleting the current game promotes the most recently played survivor.
func (m *MemoryStore) DeleteGame(ownerID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[id]
	if !ok || game.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.games, id)
	if !game.IsCurrent {
		return nil
	}
	survivors := m.ownedLocked(ownerID)
	if len(survivors) == 0 {
		return nil
	}
	domain.SortForDisplay(survivors)
	replacement := survivors[0]
	now := time.Now().UTC()
	replacement.IsCurrent = true
	replacement.Status = domain.StatusPlaying
	replacement.LastNowPlayingAt = &now
	replacement.UpdatedAt = now
	m.games[replacement.ID] = replacement
	return nil
}

func (m *MemoryStore) ownedLocked(ownerID string) []domain.Game {
	games := make([]domain.Game, 0, len(m.games))
	for _, g := range m.games {
		if g.OwnerID == ownerID {
			games = append(games, g)
		}
	}
	return games
}
