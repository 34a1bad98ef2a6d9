package repository

import (
	"context"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/database"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Repository provides data access methods
type Repository interface {
	// EntryStatus operations. CreateEntryStatus inserts the status row and all
	// of its events in a single transaction; a failure on any event insert
	// rolls back the whole unit.
	CreateEntryStatus(ctx context.Context, status *models.EntryStatus) error
	ListEntryStatuses(ctx context.Context, port string, after *time.Time, limit int) ([]models.EntryStatus, error)

	// Report operations
	CreateReport(ctx context.Context, report *models.Report) error
	FindReportByID(ctx context.Context, reportID string) (*models.Report, error)

	// Notification outbox operations
	CreateOutboxEntry(ctx context.Context, entry *models.NotificationOutbox) error
	ListUndelivered(ctx context.Context, limit int) ([]models.NotificationOutbox, error)
	MarkDelivered(ctx context.Context, id uint) error
	RecordDeliveryFailure(ctx context.Context, id uint, lastError string) error
}

// repo is an implementation of the Repository interface
type repo struct {
	db database.DB
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{db: db}
}

// CreateEntryStatus inserts an entry status with its events atomically.
// Event order is preserved through the association insert.
func (r *repo) CreateEntryStatus(ctx context.Context, status *models.EntryStatus) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	err = gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(status).Error
	})
	if err != nil {
		return errors.Wrap(ErrCreateFailed, err.Error())
	}
	return nil
}

// ListEntryStatuses returns statuses matching the conjunctive filters, most
// recent first, with events eager-loaded in insertion order.
func (r *repo) ListEntryStatuses(ctx context.Context, port string, after *time.Time, limit int) ([]models.EntryStatus, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting database handle")
	}

	query := gormDB.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})

	if port != "" {
		query = query.Where("port = ?", port)
	}
	if after != nil {
		query = query.Where("datetime >= ?", *after)
	}

	var statuses []models.EntryStatus
	if err := query.Order("datetime DESC").Limit(limit).Find(&statuses).Error; err != nil {
		return nil, errors.Wrap(ErrQueryFailed, err.Error())
	}
	return statuses, nil
}

// CreateReport inserts a report catalog row
func (r *repo) CreateReport(ctx context.Context, report *models.Report) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	if err := gormDB.WithContext(ctx).Create(report).Error; err != nil {
		return errors.Wrap(ErrCreateFailed, err.Error())
	}
	return nil
}

// FindReportByID resolves a report reference to its catalog row
func (r *repo) FindReportByID(ctx context.Context, reportID string) (*models.Report, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting database handle")
	}

	var report models.Report
	err = gormDB.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(ErrQueryFailed, err.Error())
	}
	return &report, nil
}

// CreateOutboxEntry records a notification payload for later retry
func (r *repo) CreateOutboxEntry(ctx context.Context, entry *models.NotificationOutbox) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	if err := gormDB.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(ErrCreateFailed, err.Error())
	}
	return nil
}

// ListUndelivered returns outbox rows still awaiting delivery, oldest first
func (r *repo) ListUndelivered(ctx context.Context, limit int) ([]models.NotificationOutbox, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting database handle")
	}

	var entries []models.NotificationOutbox
	err = gormDB.WithContext(ctx).
		Where("delivered = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(ErrQueryFailed, err.Error())
	}
	return entries, nil
}

// MarkDelivered flags an outbox row as successfully relayed
func (r *repo) MarkDelivered(ctx context.Context, id uint) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	err = gormDB.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Update("delivered", true).Error
	if err != nil {
		return errors.Wrap(ErrQueryFailed, err.Error())
	}
	return nil
}

// RecordDeliveryFailure bumps the attempt counter and stores the last error
func (r *repo) RecordDeliveryFailure(ctx context.Context, id uint, lastError string) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	err = gormDB.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
	if err != nil {
		return errors.Wrap(ErrQueryFailed, err.Error())
	}
	return nil
}
