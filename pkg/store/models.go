package store

import (
	"time"

	"gameshelf/pkg/domain"
)

// GameModel is the GORM row for one tracked game.
type GameModel struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	OwnerID           string `gorm:"not null;index"`
	Title             string `gorm:"not null"`
	Platform          string `gorm:"not null"`
	Status            string `gorm:"not null"`
	CoverArtURL       string
	HoursPlayed       float64    `gorm:"not null"`
	EstimatedHours    float64    `gorm:"not null"`
	CompletionPercent int        `gorm:"not null"`
	IsCurrent         bool       `gorm:"not null;index"`
	LastNowPlayingAt  *time.Time `gorm:"index"`
	CreatedAt         time.Time  `gorm:"not null;index"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName pins the table name; the default pluralizer would also produce
// "games" but the schema should not depend on it.
func (GameModel) TableName() string { return "games" }

func gameToModel(g domain.Game) GameModel {
	return GameModel{
		ID:                g.ID,
		OwnerID:           g.OwnerID,
		Title:             g.Title,
		Platform:          string(g.Platform),
		Status:            g.Status,
		CoverArtURL:       g.CoverArtURL,
		HoursPlayed:       g.HoursPlayed,
		EstimatedHours:    g.EstimatedHours,
		CompletionPercent: g.CompletionPercent,
		IsCurrent:         g.IsCurrent,
		LastNowPlayingAt:  g.LastNowPlayingAt,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

func gameFromModel(m GameModel) domain.Game {
	return domain.Game{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		Title:             m.Title,
		Platform:          domain.Platform(m.Platform),
		Status:            m.Status,
		CoverArtURL:       m.CoverArtURL,
		HoursPlayed:       m.HoursPlayed,
		EstimatedHours:    m.EstimatedHours,
		CompletionPercent: m.CompletionPercent,
		IsCurrent:         m.IsCurrent,
		LastNowPlayingAt:  m.LastNowPlayingAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
