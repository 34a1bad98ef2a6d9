package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/metrics"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/repository"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateEntryStatus(ctx context.Context, status *models.EntryStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockRepository) ListEntryStatuses(ctx context.Context, port string, after *time.Time, limit int) ([]models.EntryStatus, error) {
	args := m.Called(ctx, port, after, limit)
	return args.Get(0).([]models.EntryStatus), args.Error(1)
}

func (m *MockRepository) CreateReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRepository) FindReportByID(ctx context.Context, reportID string) (*models.Report, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockRepository) CreateOutboxEntry(ctx context.Context, entry *models.NotificationOutbox) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) ListUndelivered(ctx context.Context, limit int) ([]models.NotificationOutbox, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.NotificationOutbox), args.Error(1)
}

func (m *MockRepository) MarkDelivered(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) RecordDeliveryFailure(ctx context.Context, id uint, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

// Mock notifier for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Relay(ctx context.Context, payload *models.NotificationPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newTestService(t *testing.T, repo repository.Repository, n *MockNotifier, blobs storage.BlobStore, cfg *config.Config) Service {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{
			Query:   config.QueryConfig{MaxCount: 10},
			Worker:  config.WorkerConfig{BatchSize: 20},
			Storage: config.StorageConfig{BucketName: "reports", EndpointURL: "http://manage:8080"},
		}
	}

	log := logrus.New()
	svc, err := NewService(ServiceConfig{
		Repository: repo,
		BlobStore:  blobs,
		Notifier:   n,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Config:     cfg,
		Logger:     log,
	})
	require.NoError(t, err)
	return svc
}

func TestIngestStatusHappyPath(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	repo.On("CreateEntryStatus", mock.Anything, mock.AnythingOfType("*models.EntryStatus")).Return(nil)
	n.On("Relay", mock.Anything, mock.AnythingOfType("*models.NotificationPayload")).Return(nil)

	location := "35.6,139.7"
	req := &models.StatusPostRequest{
		Port:     "port-01",
		Datetime: "2024-06-01T12:00:00Z",
		Detect:   true,
		Events: []models.StatusEvent{
			{ID: "o1", Type: "car", Detect: true, Location: &location},
			{ID: "o2", Type: "person", Detect: false},
		},
	}

	require.NoError(t, svc.IngestStatus(context.Background(), req))

	// Events carried over in submission order
	status := repo.Calls[0].Arguments.Get(1).(*models.EntryStatus)
	require.Equal(t, "port-01", status.Port)
	require.Nil(t, status.ReportID)
	require.Len(t, status.Events, 2)
	require.Equal(t, "o1", status.Events[0].ObjectID)
	require.Equal(t, "o2", status.Events[1].ObjectID)

	payload := n.Calls[0].Arguments.Get(1).(*models.NotificationPayload)
	require.Equal(t, "", payload.ReportEndpoint)
	require.Equal(t, req.Events, payload.Events)

	repo.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestIngestStatusBadDatetime(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	req := &models.StatusPostRequest{Port: "port-01", Datetime: "not-a-date"}
	err := svc.IngestStatus(context.Background(), req)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
	repo.AssertNotCalled(t, "CreateEntryStatus", mock.Anything, mock.Anything)
}

func TestIngestStatusUnknownReportFails(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	repo.On("FindReportByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	req := &models.StatusPostRequest{
		Port:     "port-01",
		Datetime: "2024-06-01T12:00:00Z",
		ReportID: "missing",
	}
	err := svc.IngestStatus(context.Background(), req)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 404, appErr.StatusCode)

	// Nothing persisted and nothing relayed
	repo.AssertNotCalled(t, "CreateEntryStatus", mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything)
}

func TestIngestStatusResolvesReportEndpoint(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	repo.On("FindReportByID", mock.Anything, "r-1").Return(&models.Report{
		ReportID: "r-1",
		Endpoint: "http://manage:8080/api/v1/report/x.pdf",
	}, nil)
	repo.On("CreateEntryStatus", mock.Anything, mock.Anything).Return(nil)
	n.On("Relay", mock.Anything, mock.Anything).Return(nil)

	req := &models.StatusPostRequest{
		Port:     "port-01",
		Datetime: "2024-06-01T12:00:00Z",
		ReportID: "r-1",
	}
	require.NoError(t, svc.IngestStatus(context.Background(), req))

	status := repo.Calls[1].Arguments.Get(1).(*models.EntryStatus)
	require.NotNil(t, status.ReportID)
	require.Equal(t, "r-1", *status.ReportID)

	payload := n.Calls[0].Arguments.Get(1).(*models.NotificationPayload)
	require.Equal(t, "http://manage:8080/api/v1/report/x.pdf", payload.ReportEndpoint)
}

func TestIngestStatusRelayFailurePropagatesAfterCommit(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	repo.On("CreateEntryStatus", mock.Anything, mock.Anything).Return(nil)
	repo.On("CreateOutboxEntry", mock.Anything, mock.Anything).Return(nil)
	n.On("Relay", mock.Anything, mock.Anything).Return(apperrors.NewRemote(503, "service unavailable"))

	req := &models.StatusPostRequest{
		Port:     "port-01",
		Datetime: "2024-06-01T12:00:00Z",
	}
	err := svc.IngestStatus(context.Background(), req)

	// The downstream status and body come back verbatim
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 503, appErr.StatusCode)
	require.Equal(t, "service unavailable", appErr.Message)

	// The status row was committed and the payload queued for retry
	repo.AssertCalled(t, "CreateEntryStatus", mock.Anything, mock.Anything)
	repo.AssertCalled(t, "CreateOutboxEntry", mock.Anything, mock.Anything)
}

func TestQueryStatusesInvalidMaxCount(t *testing.T) {
	for _, maxCount := range []int{0, -1} {
		repo := new(MockRepository)
		n := new(MockNotifier)
		cfg := &config.Config{Query: config.QueryConfig{MaxCount: maxCount}}
		svc := newTestService(t, repo, n, nil, cfg)

		_, err := svc.QueryStatuses(context.Background(), "", "")

		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, 400, appErr.StatusCode)
		require.Equal(t, apperrors.CodeConfig, appErr.Code)
	}
}

func TestQueryStatusesBuildsViews(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	reportID := "r-1"
	repo.On("ListEntryStatuses", mock.Anything, "port-01", mock.Anything, 10).Return([]models.EntryStatus{
		{
			Port:     "port-01",
			Datetime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			Detect:   true,
			ReportID: &reportID,
			Events: []models.Event{
				{ObjectID: "o1", ObjectType: "car", Detect: true},
			},
		},
		{
			Port:     "port-01",
			Datetime: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		},
	}, nil)
	repo.On("FindReportByID", mock.Anything, "r-1").Return(&models.Report{
		ReportID: "r-1",
		Endpoint: "http://manage:8080/api/v1/report/x.pdf",
	}, nil)

	views, err := svc.QueryStatuses(context.Background(), "port-01", "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.NotNil(t, views[0].ReportEndpoint)
	require.Equal(t, "http://manage:8080/api/v1/report/x.pdf", *views[0].ReportEndpoint)
	require.Len(t, views[0].Events, 1)
	require.Equal(t, "o1", views[0].Events[0].ID)

	// A status without events yields an empty array, and no report endpoint
	require.Nil(t, views[1].ReportEndpoint)
	require.NotNil(t, views[1].Events)
	require.Empty(t, views[1].Events)
}

func TestPutReportRoundTrip(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	blobs := storage.NewMemStore()
	svc := newTestService(t, repo, n, blobs, nil)

	repo.On("CreateReport", mock.Anything, mock.AnythingOfType("*models.Report")).Return(nil)

	reportID, err := svc.PutReport(context.Background(), "x.pdf", bytes.NewReader([]byte("report-bytes")))
	require.NoError(t, err)
	require.NotEmpty(t, reportID)

	report := repo.Calls[0].Arguments.Get(1).(*models.Report)
	require.Equal(t, "http://manage:8080/api/v1/report/x.pdf", report.Endpoint)
	require.Equal(t, reportID, report.ReportID)

	// The uploaded bytes are retrievable again
	data, err := svc.GetReport(context.Background(), "x.pdf")
	require.NoError(t, err)
	require.Equal(t, []byte("report-bytes"), data)
}

func TestPutReportDeletesBlobWhenInsertFails(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	blobs := storage.NewMemStore()
	svc := newTestService(t, repo, n, blobs, nil)

	repo.On("CreateReport", mock.Anything, mock.Anything).Return(repository.ErrCreateFailed)

	_, err := svc.PutReport(context.Background(), "x.pdf", bytes.NewReader([]byte("report-bytes")))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 500, appErr.StatusCode)

	// The orphaned blob was cleaned up again
	_, err = blobs.Get(context.Background(), "x.pdf")
	require.ErrorIs(t, err, storage.ErrNoSuchKey)
}

func TestPutReportMissingEndpointURL(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	cfg := &config.Config{
		Query:   config.QueryConfig{MaxCount: 10},
		Storage: config.StorageConfig{BucketName: "reports"},
	}
	svc := newTestService(t, repo, n, storage.NewMemStore(), cfg)

	_, err := svc.PutReport(context.Background(), "x.pdf", bytes.NewReader(nil))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.CodeConfig, appErr.Code)
	require.Equal(t, 500, appErr.StatusCode)
}

func TestGetReportNotFound(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, storage.NewMemStore(), nil)

	_, err := svc.GetReport(context.Background(), "missing.pdf")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 404, appErr.StatusCode)
}

func TestRetryUndelivered(t *testing.T) {
	repo := new(MockRepository)
	n := new(MockNotifier)
	svc := newTestService(t, repo, n, nil, nil)

	repo.On("ListUndelivered", mock.Anything, 20).Return([]models.NotificationOutbox{
		{ID: 1, Payload: `{"port":"port-01","datetime":"2024-06-01T12:00:00Z","detect":true,"event":[],"report_endpoint":""}`},
		{ID: 2, Payload: `{"port":"port-02","datetime":"2024-06-01T13:00:00Z","detect":false,"event":[],"report_endpoint":""}`},
	}, nil)
	n.On("Relay", mock.Anything, mock.MatchedBy(func(p *models.NotificationPayload) bool {
		return p.Port == "port-01"
	})).Return(nil)
	n.On("Relay", mock.Anything, mock.MatchedBy(func(p *models.NotificationPayload) bool {
		return p.Port == "port-02"
	})).Return(apperrors.NewTransport("Error occurred."))
	repo.On("MarkDelivered", mock.Anything, uint(1)).Return(nil)
	repo.On("RecordDeliveryFailure", mock.Anything, uint(2), mock.Anything).Return(nil)

	require.NoError(t, svc.RetryUndelivered(context.Background()))

	repo.AssertExpectations(t)
	n.AssertExpectations(t)
}
