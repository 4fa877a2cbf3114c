// Package prefs persists console view state locally so a restart lands the
// operator back where they left off.
package prefs

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Get retrieves view preferences for a profile, returning defaults if none
// have been saved yet.
func (svc *Service) Get(ctx context.Context, profile string) (*models.ViewPrefs, error) {
	prefs := &models.ViewPrefs{}
	err := svc.db.NewSelect().
		Model(prefs).
		Where("profile = ?", profile).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultViewPrefs()
			defaults.Profile = profile
			return defaults, nil
		}
		return nil, errors.WithStack(err)
	}

	return prefs, nil
}

// Save upserts view preferences for a profile.
func (svc *Service) Save(ctx context.Context, prefs *models.ViewPrefs) (*models.ViewPrefs, error) {
	now := time.Now()
	prefs.CreatedAt = now
	prefs.UpdatedAt = now

	_, err := svc.db.NewInsert().
		Model(prefs).
		On("CONFLICT (profile) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("last_platform = EXCLUDED.last_platform").
		Set("column_layout = EXCLUDED.column_layout").
		Set("sort_field = EXCLUDED.sort_field").
		Set("sort_asc = EXCLUDED.sort_asc").
		Set("panel_sizes = EXCLUDED.panel_sizes").
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, errors.WithStack(err)
	}

	return prefs, nil
}

// SaveLastPlatform records just the platform switch, preserving the other
// saved preferences.
func (svc *Service) SaveLastPlatform(ctx context.Context, profile, platform string) error {
	prefs, err := svc.Get(ctx, profile)
	if err != nil {
		return err
	}
	prefs.LastPlatform = platform
	_, err = svc.Save(ctx, prefs)
	return err
}
