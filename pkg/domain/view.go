package domain

import "sort"

// SortForDisplay orders games the way the library is shown: the current game
// first, then by most recent now-playing time with never-played games last,
// newest record first on ties. Both the server list endpoint and clients use
// this ordering so derived views never diverge.
func SortForDisplay(games []Game) {
	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		if a.IsCurrent != b.IsCurrent {
			return a.IsCurrent
		}
		if c := compareLastPlayed(a, b); c != 0 {
			return c > 0
		}
		return a.ID > b.ID
	})
}

// CurrentGame returns the record flagged as now playing, if any.
func CurrentGame(games []Game) (Game, bool) {
	for _, g := range games {
		if g.IsCurrent {
			return g, true
		}
	}
	return Game{}, false
}

// Backlog returns the non-current games sorted descending by
// LastNowPlayingAt; games never marked now-playing sort last.
func Backlog(games []Game) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		if !g.IsCurrent {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := compareLastPlayed(out[i], out[j]); c != 0 {
			return c > 0
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// compareLastPlayed returns >0 when a was played more recently than b.
// A nil timestamp counts as the earliest possible time.
func compareLastPlayed(a, b Game) int {
	switch {
	case a.LastNowPlayingAt == nil && b.LastNowPlayingAt == nil:
		return 0
	case a.LastNowPlayingAt == nil:
		return -1
	case b.LastNowPlayingAt == nil:
		return 1
	case a.LastNowPlayingAt.After(*b.LastNowPlayingAt):
		return 1
	case b.LastNowPlayingAt.After(*a.LastNowPlayingAt):
		return -1
	default:
		return 0
	}
}
