package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/blockedby/tg-relay/internal/logger"
)

// the settings table holds exactly one row
const singletonID = 1

// Repository handles the relay_settings table.
type Repository struct {
	db  *gorm.DB
	log *logger.Logger
	mu  sync.Mutex // serializes Update
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Nop()
	}
	return &Repository{db: db, log: log.WithComponent("settings")}
}

// Migrate creates or updates the settings table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Settings{}); err != nil {
		return fmt.Errorf("migrate settings: %w", err)
	}
	return nil
}

// Load returns the stored settings, or zero settings if none were saved yet.
func (r *Repository) Load(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.db.WithContext(ctx).First(&s, singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Settings{ID: singletonID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &s, nil
}

// Save stores s as the settings row.
func (r *Repository) Save(ctx context.Context, s *Settings) error {
	s.ID = singletonID
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn and saves the result.
// Nothing is written when fn returns an error.
func (r *Repository) Update(ctx context.Context, fn func(*Settings) error) (*Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SeedIfEmpty stores seed when no settings row exists yet.
// It reports whether the seed was written.
func (r *Repository) SeedIfEmpty(ctx context.Context, seed *Settings) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	if err := r.db.WithContext(ctx).Model(&Settings{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count settings: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := r.Save(ctx, seed); err != nil {
		return false, err
	}
	r.log.Info().
		Int64("source", seed.SourceChannelID).
		Int("destinations", len(seed.DestinationIDs)).
		Msg("settings seeded")
	return true, nil
}
