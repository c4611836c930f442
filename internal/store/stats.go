package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/types"
)

// StatsRepository runs read-only rollups for the admin dashboard.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Totals(ctx context.Context) (types.Totals, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM users),
			(SELECT COUNT(1) FROM properties),
			(SELECT COUNT(1) FROM properties WHERE status = 'ACTIVE'),
			(SELECT COUNT(1) FROM contact_access)`
	var totals types.Totals
	err := r.db.QueryRowContext(ctx, query).Scan(
		&totals.Users,
		&totals.Properties,
		&totals.ActiveProperties,
		&totals.ContactReveals,
	)
	return totals, err
}

func (r *StatsRepository) PropertiesByCity(ctx context.Context) ([]types.GroupCount, error) {
	return r.groupCount(ctx, `SELECT city, COUNT(1) FROM properties GROUP BY city ORDER BY COUNT(1) DESC, city`)
}

func (r *StatsRepository) PropertiesByType(ctx context.Context) ([]types.GroupCount, error) {
	return r.groupCount(ctx, `SELECT type, COUNT(1) FROM properties GROUP BY type ORDER BY COUNT(1) DESC, type`)
}

func (r *StatsRepository) UsersByRole(ctx context.Context) ([]types.GroupCount, error) {
	return r.groupCount(ctx, `SELECT role, COUNT(1) FROM users GROUP BY role ORDER BY COUNT(1) DESC, role`)
}

// Trend series names accepted by DailyCounts.
const (
	SeriesProperties     = "properties"
	SeriesUsers          = "users"
	SeriesContactReveals = "contact_access"
)

// dailyTables maps a trend series to its table and timestamp column.
var dailyTables = map[string][2]string{
	SeriesProperties:     {"properties", "created_at"},
	SeriesUsers:          {"users", "created_at"},
	SeriesContactReveals: {"contact_access", "timestamp"},
}

// DailyCounts returns per-UTC-day counts of rows created at or after since.
// Days without rows are omitted.
func (r *StatsRepository) DailyCounts(ctx context.Context, series string, since time.Time) ([]types.DayCount, error) {
	table, ok := dailyTables[series]
	if !ok {
		return nil, fmt.Errorf("store: unknown series %q", series)
	}
	query := fmt.Sprintf(`
		SELECT date_trunc('day', %[2]s AT TIME ZONE 'UTC') AS day, COUNT(1)
		FROM %[1]s
		WHERE %[2]s >= $1
		GROUP BY day
		ORDER BY day`, table[0], table[1])

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []types.DayCount
	for rows.Next() {
		var dc types.DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		dc.Day = time.Date(dc.Day.Year(), dc.Day.Month(), dc.Day.Day(), 0, 0, 0, 0, time.UTC)
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

func (r *StatsRepository) groupCount(ctx context.Context, query string) ([]types.GroupCount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []types.GroupCount{}
	for rows.Next() {
		var gc types.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, gc)
	}
	return counts, rows.Err()
}
