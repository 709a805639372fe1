package domain

import "time"

// Platform is the fixed set of platforms a game can be tracked under.
type Platform string

const (
	PlatformPC         Platform = "PC"
	PlatformPS5        Platform = "PS5"
	PlatformPS4        Platform = "PS4"
	PlatformXboxSeries Platform = "Xbox Series"
	PlatformXboxOne    Platform = "Xbox One"
	PlatformSwitch     Platform = "Switch"
	PlatformOther      Platform = "Other"
)

// Platforms lists every accepted platform value.
var Platforms = []Platform{
	PlatformPC,
	PlatformPS5,
	PlatformPS4,
	PlatformXboxSeries,
	PlatformXboxOne,
	PlatformSwitch,
	PlatformOther,
}

// KnownPlatform reports whether p is one of the accepted platform values.
func KnownPlatform(p Platform) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Lifecycle status labels. Status is free-form; these are the values the
// service itself writes.
const (
	StatusBacklog = "backlog"
	StatusPlaying = "playing"
)

// DefaultEstimatedHours is applied when a game is created without an estimate.
const DefaultEstimatedHours = 40

// Game is one tracked game owned by a single user.
// CompletionPercent is derived from HoursPlayed and EstimatedHours and is
// never accepted from a caller.
type Game struct {
	ID                int64      `json:"id"`
	OwnerID           string     `json:"-"`
	Title             string     `json:"title"`
	Platform          Platform   `json:"platform"`
	Status            string     `json:"status"`
	CoverArtURL       string     `json:"cover_art_url,omitempty"`
	HoursPlayed       float64    `json:"hours_played"`
	EstimatedHours    float64    `json:"estimated_hours"`
	CompletionPercent int        `json:"completion_percent"`
	IsCurrent         bool       `json:"is_current"`
	LastNowPlayingAt  *time.Time `json:"last_now_playing_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
