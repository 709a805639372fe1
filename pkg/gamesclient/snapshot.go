package gamesclient

import "gameshelf/pkg/domain"

// Snapshot is a point-in-time view of a library fetched from the API.
type Snapshot struct {
	Games []domain.Game
}

// Snapshot fetches the caller's library once and wraps it with view helpers
// so dashboards can derive the current game and backlog without extra
// round-trips.
func (c *Client) Snapshot(token string) (Snapshot, error) {
	games, err := c.ListGames(token)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Games: games}, nil
}

// Current returns the game flagged as now playing, if any.
func (s Snapshot) Current() (domain.Game, bool) {
	return domain.CurrentGame(s.Games)
}

// Backlog returns the non-current games, most recently played first.
func (s Snapshot) Backlog() []domain.Game {
	return domain.Backlog(s.Games)
}
