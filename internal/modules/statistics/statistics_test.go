package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestRefreshAggregates(t *testing.T) {
	gdb, mock := mockDB(t)
	svc := NewService(gdb, nil)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(7))
	mock.ExpectQuery("SELECT templates.name").
		WillReturnRows(sqlmock.NewRows([]string{"name", "count"}).
			AddRow("movies", 4).
			AddRow("books", 3))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(4.2, 19))

	got, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.TotalItems)
	assert.Equal(t, map[string]int64{"movies": 4, "books": 3}, got.ItemsByTemplate)
	assert.InDelta(t, 4.2, got.OverallStatistics.AverageRating, 1e-9)
	assert.Equal(t, int64(19), got.OverallStatistics.TotalRatings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalsWithoutCacheRecomputes(t *testing.T) {
	gdb, mock := mockDB(t)
	svc := NewService(gdb, nil)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	mock.ExpectQuery("SELECT templates.name").
		WillReturnRows(sqlmock.NewRows([]string{"name", "count"}))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(0.0, 0))

	got, err := svc.Totals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalItems)
	assert.Empty(t, got.ItemsByTemplate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheOutlivesBackgroundRefresh(t *testing.T) {
	// The scheduler recomputes every 5 minutes; the entry must not
	// expire in between.
	assert.Greater(t, cacheTTL, 5*time.Minute)
}
