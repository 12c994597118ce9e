package checkout

import (
	"context"

	"gorm.io/gorm"

	dbpkg "github.com/ivanberrios/storefront-backend/pkg/db"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
)

// Repository records processed provider event ids durably.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	EventProcessed(ctx context.Context, eventID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a webhook event repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// MarkEventProcessed inserts the event id, reporting false when another
// delivery already holds the row. The primary key is the dedupe.
func (r *repository) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	row := models.WebhookEvent{EventID: eventID, EventType: eventType}
	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
