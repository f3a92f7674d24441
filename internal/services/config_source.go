package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/cache"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// ConfigurationSource resolves named numeric configuration (reduction
// factors, award percentages, tolerance) from the open parameter versions.
type ConfigurationSource interface {
	GetNamedValue(ctx context.Context, name string) (float64, error)
}

type configurationSource struct {
	db     *gorm.DB
	log    *logger.Logger
	params repos.GoalParameterRepo
	cache  cache.ParamCache
}

func NewConfigurationSource(db *gorm.DB, baseLog *logger.Logger, params repos.GoalParameterRepo, c cache.ParamCache) ConfigurationSource {
	return &configurationSource{
		db:     db,
		log:    baseLog.With("service", "ConfigurationSource"),
		params: params,
		cache:  c,
	}
}

func (s *configurationSource) GetNamedValue(ctx context.Context, name string) (float64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty parameter name", errors.ErrInvalidArgument)
	}
	key := goals.NamedKey(name).Identity()
	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("Parameter cache read failed, falling back to database", "key", key, "error", err)
		} else if ok {
			return v, nil
		}
	}
	open, err := s.params.GetOpen(dbctx.New(ctx), key)
	if err != nil {
		return 0, fmt.Errorf("load parameter %q: %w", name, err)
	}
	if open == nil {
		return 0, fmt.Errorf("%w: parameter %q", errors.ErrNotFound, name)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, open.Value); err != nil {
			s.log.Warn("Parameter cache write failed", "key", key, "error", err)
		}
	}
	return open.Value, nil
}

// NamedOrDefault reads name and falls back to def when it is not configured.
func NamedOrDefault(ctx context.Context, src ConfigurationSource, name string, def float64) (float64, error) {
	v, err := src.GetNamedValue(ctx, name)
	if err == nil {
		return v, nil
	}
	if errors.IsNotFound(err) {
		return def, nil
	}
	return 0, err
}
