package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/cache"
	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos/testutil"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
)

type fixture struct {
	db       *gorm.DB
	repos    repos.Set
	cache    *cache.Memory
	audit    *notify.Recorder
	store    ParameterVersionStore
	source   ConfigurationSource
	rankings RankingService
	periods  PeriodService
}

// newFixture works on the root handle: the services open their own
// transactions and the test database has a single connection.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	mem := cache.NewMemory(time.Minute)
	rec := &notify.Recorder{}
	rankingSvc := NewRankingService(db, log, set, config.NewStore(nil), rec)
	return &fixture{
		db:       db,
		repos:    set,
		cache:    mem,
		audit:    rec,
		store:    NewParameterVersionStore(db, log, set.Periods, set.Parameters, set.Entries, mem, rec),
		source:   NewConfigurationSource(db, log, set.Parameters, mem),
		rankings: rankingSvc,
		periods:  NewPeriodService(db, log, set.Periods, rankingSvc, rec),
	}
}

func f64(v float64) *float64 { return &v }
