package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidationError describes input rejected by the record model.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ErrInvalidEstimate is returned when a completion percentage cannot be
// computed because the estimate is not positive.
var ErrInvalidEstimate = &ValidationError{Field: "estimated_hours", Reason: "must be greater than zero"}

// ComputeCompletion derives the completion percentage from hours played
// versus the estimated total. The result is clamped to [0, 100] and rounded
// to the nearest integer.
func ComputeCompletion(hoursPlayed, estimatedHours float64) (int, error) {
	if estimatedHours <= 0 {
		return 0, ErrInvalidEstimate
	}
	ratio := hoursPlayed / estimatedHours
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int(math.Round(ratio * 100)), nil
}

// CreateInput carries caller-supplied fields for a new game.
// EstimatedHours nil means "use the default".
type CreateInput struct {
	Title          string   `json:"title"`
	Platform       Platform `json:"platform"`
	CoverArtURL    string   `json:"cover_art_url"`
	Status         string   `json:"status"`
	EstimatedHours *float64 `json:"estimated_hours"`
}

// NewGame validates input and builds a record with model defaults applied.
// The store assigns ID; everything else is final.
func NewGame(ownerID string, in CreateInput, now time.Time) (Game, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Game{}, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !KnownPlatform(in.Platform) {
		return Game{}, &ValidationError{Field: "platform", Reason: "must be one of the supported platforms"}
	}
	estimate := float64(DefaultEstimatedHours)
	if in.EstimatedHours != nil {
		if *in.EstimatedHours <= 0 {
			return Game{}, ErrInvalidEstimate
		}
		estimate = *in.EstimatedHours
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = StatusBacklog
	}
	completion, err := ComputeCompletion(0, estimate)
	if err != nil {
		return Game{}, err
	}
	return Game{
		OwnerID:           ownerID,
		Title:             title,
		Platform:          in.Platform,
		Status:            status,
		CoverArtURL:       strings.TrimSpace(in.CoverArtURL),
		HoursPlayed:       0,
		EstimatedHours:    estimate,
		CompletionPercent: completion,
		IsCurrent:         false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
