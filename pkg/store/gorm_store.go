package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"gameshelf/pkg/domain"
)

const migrateLockID int64 = 48215521

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrently starting instances do not race on DDL.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&GameModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// ListGames returns every game owned by ownerID in display order: current
// first, then most recently played, never-played last.
func (s *GormStore) ListGames(ownerID string) ([]domain.Game, error) {
	var models []GameModel
	if err := s.db.Where("owner_id = ?", ownerID).
		Order("is_current DESC").
		Order("last_now_playing_at DESC NULLS LAST").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	games := make([]domain.Game, 0, len(models))
	for _, m := range models {
		games = append(games, gameFromModel(m))
	}
	return games, nil
}

// GetGame retrieves one game scoped to its owner.
func (s *GormStore) GetGame(ownerID string, id int64) (domain.Game, error) {
	var model GameModel
	if err := s.db.First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Game{}, ErrNotFound
		}
		return domain.Game{}, err
	}
	return gameFromModel(model), nil
}

// CreateGame validates the input, applies model defaults, and inserts the
// row. The database assigns the id.
func (s *GormStore) CreateGame(ownerID string, in domain.CreateInput) (domain.Game, error) {
	game, err := domain.NewGame(ownerID, in, time.Now().UTC())
	if err != nil {
		return domain.Game{}, err
	}
	model := gameToModel(game)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Game{}, fmt.Errorf("create game: %w", err)
	}
	return gameFromModel(model), nil
}

// UpdateGame applies a sparse patch inside one transaction. The target row
// is locked before patching; when the patch promotes the record to current,
// every sibling is demoted in the same transaction so the single-current
// invariant holds under concurrent updates.
func (s *GormStore) UpdateGame(ownerID string, id int64, patch domain.GamePatch) (domain.Game, error) {
	var updated domain.Game
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model GameModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		game := gameFromModel(model)
		now := time.Now().UTC()
		outcome, err := patch.Apply(&game, now)
		if err != nil {
			return err
		}
		if outcome.BecameCurrent {
			if err := tx.Model(&GameModel{}).
				Where("owner_id = ? AND id <> ? AND is_current", ownerID, id).
				Updates(map[string]any{"is_current": false, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("demote siblings: %w", err)
			}
		}
		model = gameToModel(game)
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("save game: %w", err)
		}
		updated = game
		return nil
	})
	if err != nil {
		return domain.Game{}, err
	}
	return updated, nil
}

// DeleteGame removes the row. Deleting a record that does not exist under
// this owner fails with ErrNotFound, so a second delete is an error. When
// the deleted game was current, the most recently played survivor becomes
// current inside the same transaction.
func (s *GormStore) DeleteGame(ownerID string, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model GameModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		wasCurrent := model.IsCurrent
		if err := tx.Delete(&GameModel{}, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return fmt.Errorf("delete game: %w", err)
		}
		if !wasCurrent {
			return nil
		}
		var replacement GameModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ?", ownerID).
			Order("last_now_playing_at DESC NULLS LAST").
			Order("id DESC").
			First(&replacement).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(&GameModel{}).
			Where("id = ?", replacement.ID).
			Updates(map[string]any{
				"is_current":          true,
				"status":              domain.StatusPlaying,
				"last_now_playing_at": now,
				"updated_at":          now,
			}).Error
	})
}
