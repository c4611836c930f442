package services

import (
	"context"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/store"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"golang.org/x/sync/errgroup"
)

// MaxTrendDays bounds the lookback window of Trends.
const MaxTrendDays = 365

// AdminService serves the read-only rollups of the admin dashboard.
type AdminService struct {
	stats       StatsRepository
	users       UserRepository
	defaultDays int
	options
}

func NewAdminService(stats StatsRepository, users UserRepository, defaultDays int, opts ...Option) *AdminService {
	if defaultDays < 1 || defaultDays > MaxTrendDays {
		defaultDays = 30
	}
	return &AdminService{stats: stats, users: users, defaultDays: defaultDays, options: newOptions(opts)}
}

// Overview returns headline totals and group-by counts.
func (s *AdminService) Overview(ctx context.Context, callerID string) (types.Overview, error) {
	if _, err := requireAdmin(ctx, s.users, callerID); err != nil {
		return types.Overview{}, err
	}

	var overview types.Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		overview.Totals, err = retryRead(gctx, "count totals", func() (types.Totals, error) {
			return s.stats.Totals(gctx)
		})
		return err
	})
	g.Go(func() (err error) {
		overview.ByCity, err = retryRead(gctx, "group properties by city", func() ([]types.GroupCount, error) {
			return s.stats.PropertiesByCity(gctx)
		})
		return err
	})
	g.Go(func() (err error) {
		overview.ByType, err = retryRead(gctx, "group properties by type", func() ([]types.GroupCount, error) {
			return s.stats.PropertiesByType(gctx)
		})
		return err
	})
	g.Go(func() (err error) {
		overview.ByRole, err = retryRead(gctx, "group users by role", func() ([]types.GroupCount, error) {
			return s.stats.UsersByRole(gctx)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Overview{}, err
	}

	overview.ByCity = nonNilGroups(overview.ByCity)
	overview.ByType = nonNilGroups(overview.ByType)
	overview.ByRole = nonNilGroups(overview.ByRole)
	return overview, nil
}

// Trends returns one bucket per UTC day for the last days days, today
// included. Days without events are zero. days == 0 uses the default window.
func (s *AdminService) Trends(ctx context.Context, callerID string, days int) (types.Trends, error) {
	if _, err := requireAdmin(ctx, s.users, callerID); err != nil {
		return types.Trends{}, err
	}
	if days == 0 {
		days = s.defaultDays
	}
	if days < 1 || days > MaxTrendDays {
		return types.Trends{}, apperr.Invalid("days", "must be between 1 and 365")
	}

	today := truncateDay(s.now())
	since := today.AddDate(0, 0, -(days - 1))

	trends := types.Trends{Days: days}
	series := []struct {
		name string
		dst  *[]types.DayCount
	}{
		{store.SeriesProperties, &trends.Properties},
		{store.SeriesUsers, &trends.Users},
		{store.SeriesContactReveals, &trends.ContactReveals},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ser := range series {
		g.Go(func() error {
			counts, err := retryRead(gctx, "count "+ser.name+" per day", func() ([]types.DayCount, error) {
				return s.stats.DailyCounts(gctx, ser.name, since)
			})
			if err != nil {
				return err
			}
			*ser.dst = zeroFill(counts, since, days)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Trends{}, err
	}
	return trends, nil
}

func zeroFill(counts []types.DayCount, since time.Time, days int) []types.DayCount {
	byDay := make(map[time.Time]int, len(counts))
	for _, c := range counts {
		byDay[truncateDay(c.Day)] += c.Count
	}
	filled := make([]types.DayCount, days)
	for i := range filled {
		day := since.AddDate(0, 0, i)
		filled[i] = types.DayCount{Day: day, Count: byDay[day]}
	}
	return filled
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nonNilGroups(groups []types.GroupCount) []types.GroupCount {
	if groups == nil {
		return []types.GroupCount{}
	}
	return groups
}
