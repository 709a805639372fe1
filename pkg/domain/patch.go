package domain

import (
	"strings"
	"time"
)

// GamePatch is a sparse update. A nil field was not present in the request;
// unknown fields are dropped during decoding and never reach this struct.
//
// AddHours is an increment applied to HoursPlayed and is never stored.
// When both AddHours and HoursPlayed arrive in one patch, AddHours wins and
// the absolute HoursPlayed value is ignored.
type GamePatch struct {
	AddHours       *float64  `json:"add_hours"`
	HoursPlayed    *float64  `json:"hours_played"`
	EstimatedHours *float64  `json:"estimated_hours"`
	IsCurrent      *bool     `json:"is_current"`
	Status         *string   `json:"status"`
	Title          *string   `json:"title"`
	Platform       *Platform `json:"platform"`
	CoverArtURL    *string   `json:"cover_art_url"`
}

// PatchOutcome reports side effects the store must apply beyond the record
// itself, in the same transaction.
type PatchOutcome struct {
	// BecameCurrent means every other record of the same owner must drop
	// is_current.
	BecameCurrent bool
}

// Empty reports whether the patch carries no recognized fields.
func (p GamePatch) Empty() bool {
	return p.AddHours == nil && p.HoursPlayed == nil && p.EstimatedHours == nil &&
		p.IsCurrent == nil && p.Status == nil && p.Title == nil &&
		p.Platform == nil && p.CoverArtURL == nil
}

// Apply mutates g according to the patch precedence rules and refreshes
// UpdatedAt. Field order in the incoming request does not matter; hours are
// settled first, then completion is recomputed, then the now-playing
// transition, then metadata.
func (p GamePatch) Apply(g *Game, now time.Time) (PatchOutcome, error) {
	var outcome PatchOutcome

	hoursTouched := false
	switch {
	case p.AddHours != nil:
		if *p.AddHours < 0 {
			return outcome, &ValidationError{Field: "add_hours", Reason: "must not be negative"}
		}
		g.HoursPlayed += *p.AddHours
		hoursTouched = true
	case p.HoursPlayed != nil:
		if *p.HoursPlayed < 0 {
			return outcome, &ValidationError{Field: "hours_played", Reason: "must not be negative"}
		}
		g.HoursPlayed = *p.HoursPlayed
		hoursTouched = true
	}
	if p.EstimatedHours != nil {
		if *p.EstimatedHours <= 0 {
			return outcome, ErrInvalidEstimate
		}
		g.EstimatedHours = *p.EstimatedHours
		hoursTouched = true
	}
	if hoursTouched {
		completion, err := ComputeCompletion(g.HoursPlayed, g.EstimatedHours)
		if err != nil {
			return outcome, err
		}
		g.CompletionPercent = completion
	}

	// Only an explicit true triggers the now-playing transition. A record is
	// demoted by promoting a sibling, never directly.
	if p.IsCurrent != nil && *p.IsCurrent {
		g.IsCurrent = true
		g.Status = StatusPlaying
		at := now
		g.LastNowPlayingAt = &at
		outcome.BecameCurrent = true
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return outcome, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		g.Title = title
	}
	if p.Platform != nil {
		if !KnownPlatform(*p.Platform) {
			return outcome, &ValidationError{Field: "platform", Reason: "must be one of the supported platforms"}
		}
		g.Platform = *p.Platform
	}
	if p.Status != nil && strings.TrimSpace(*p.Status) != "" {
		g.Status = strings.TrimSpace(*p.Status)
	}
	// An empty string clears the cover art; a nil pointer leaves it alone.
	if p.CoverArtURL != nil {
		g.CoverArtURL = strings.TrimSpace(*p.CoverArtURL)
	}

	g.UpdatedAt = now
	return outcome, nil
}
