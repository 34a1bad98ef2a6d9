package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/database"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := database.NewGormDatabase(gormDB)
	require.NoError(t, database.AutoMigrate(db))

	return NewRepository(db)
}

func TestCreateEntryStatusPersistsEventsInOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	location := "35.6,139.7"
	status := &models.EntryStatus{
		Port:     "port-01",
		Datetime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Detect:   true,
		Events: []models.Event{
			{ObjectID: "o1", ObjectType: "car", Detect: true, Location: &location},
			{ObjectID: "o2", ObjectType: "person", Detect: false},
			{ObjectID: "o3", ObjectType: "bird", Detect: true},
		},
	}

	require.NoError(t, repo.CreateEntryStatus(ctx, status))
	require.NotZero(t, status.ID)

	statuses, err := repo.ListEntryStatuses(ctx, "port-01", nil, 10)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Len(t, statuses[0].Events, 3)
	require.Equal(t, "o1", statuses[0].Events[0].ObjectID)
	require.Equal(t, "o2", statuses[0].Events[1].ObjectID)
	require.Equal(t, "o3", statuses[0].Events[2].ObjectID)
	require.Equal(t, "car", statuses[0].Events[0].ObjectType)
	require.NotNil(t, statuses[0].Events[0].Location)
	require.Equal(t, "35.6,139.7", *statuses[0].Events[0].Location)
}

func TestCreateEntryStatusWithoutEvents(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	status := &models.EntryStatus{
		Port:     "port-02",
		Datetime: time.Now().UTC(),
		Detect:   false,
	}
	require.NoError(t, repo.CreateEntryStatus(ctx, status))

	statuses, err := repo.ListEntryStatuses(ctx, "port-02", nil, 10)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Empty(t, statuses[0].Events)
}

func TestListEntryStatusesFiltersAndOrdering(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		port := "port-a"
		if i%2 == 1 {
			port = "port-b"
		}
		status := &models.EntryStatus{
			Port:     port,
			Datetime: base.Add(time.Duration(i) * time.Hour),
			Detect:   true,
		}
		require.NoError(t, repo.CreateEntryStatus(ctx, status))
	}

	// No filters: newest first
	all, err := repo.ListEntryStatuses(ctx, "", nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].Datetime.After(all[i-1].Datetime))
	}

	// Port filter
	portA, err := repo.ListEntryStatuses(ctx, "port-a", nil, 10)
	require.NoError(t, err)
	require.Len(t, portA, 3)
	for _, status := range portA {
		require.Equal(t, "port-a", status.Port)
	}

	// Datetime lower bound composes with port filter
	after := base.Add(2 * time.Hour)
	filtered, err := repo.ListEntryStatuses(ctx, "port-a", &after, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, status := range filtered {
		require.Equal(t, "port-a", status.Port)
		require.False(t, status.Datetime.Before(after))
	}
}

func TestListEntryStatusesRespectsLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		status := &models.EntryStatus{
			Port:     fmt.Sprintf("port-%02d", i),
			Datetime: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateEntryStatus(ctx, status))
	}

	statuses, err := repo.ListEntryStatuses(ctx, "", nil, 10)
	require.NoError(t, err)
	require.Len(t, statuses, 10)
	// Newest rows win the cut
	require.Equal(t, "port-14", statuses[0].Port)
}

func TestFindReportByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	report := &models.Report{
		ReportID: "r-123",
		Endpoint: "http://manage:8080/api/v1/report/x.pdf",
	}
	require.NoError(t, repo.CreateReport(ctx, report))

	found, err := repo.FindReportByID(ctx, "r-123")
	require.NoError(t, err)
	require.Equal(t, report.Endpoint, found.Endpoint)

	_, err = repo.FindReportByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOutboxLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry := &models.NotificationOutbox{Payload: `{"port":"p1"}`}
	require.NoError(t, repo.CreateOutboxEntry(ctx, entry))
	require.NotZero(t, entry.ID)

	undelivered, err := repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, undelivered, 1)

	require.NoError(t, repo.RecordDeliveryFailure(ctx, entry.ID, "connection refused"))
	undelivered, err = repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, undelivered, 1)
	require.Equal(t, 1, undelivered[0].Attempts)
	require.Equal(t, "connection refused", undelivered[0].LastError)

	require.NoError(t, repo.MarkDelivered(ctx, entry.ID))
	undelivered, err = repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, undelivered)
}
