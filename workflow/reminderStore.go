package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/invoice_backend/models"
	"gorm.io/gorm"
)

// ReminderStore is the persistence the reminder dispatcher needs.
type ReminderStore interface {
	ListReminderBusinesses(ctx context.Context) ([]string, error)
	ListReminderCandidates(ctx context.Context, businessId string) ([]models.ReminderInvoice, error)
	ClaimNotification(ctx context.Context, businessId string, invoiceId int, bucket models.ReminderBucket, day time.Time) (*models.NotificationLog, error)
	RecordNotificationMessage(ctx context.Context, entry *models.NotificationLog, messageId string) error
	ReleaseNotification(ctx context.Context, entry *models.NotificationLog) error
}

type GormReminderStore struct {
	DB *gorm.DB
}

func NewGormReminderStore(db *gorm.DB) *GormReminderStore {
	return &GormReminderStore{DB: db}
}

// ListReminderBusinesses returns every business holding an open advance invoice.
func (s *GormReminderStore) ListReminderBusinesses(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Table("sales_invoices").
		Where("payment_status = ? AND payment_completion_status = ? AND due_date IS NOT NULL",
			models.PaymentStatusAdvance, models.CompletionStatusPending).
		Distinct().
		Order("business_id").
		Pluck("business_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormReminderStore) ListReminderCandidates(ctx context.Context, businessId string) ([]models.ReminderInvoice, error) {
	return models.ListReminderCandidates(s.DB.WithContext(ctx), businessId)
}

func (s *GormReminderStore) ClaimNotification(ctx context.Context, businessId string, invoiceId int, bucket models.ReminderBucket, day time.Time) (*models.NotificationLog, error) {
	return models.ClaimNotification(s.DB.WithContext(ctx), businessId, invoiceId, bucket, day)
}

func (s *GormReminderStore) RecordNotificationMessage(ctx context.Context, entry *models.NotificationLog, messageId string) error {
	return models.RecordNotificationMessage(s.DB.WithContext(ctx), entry, messageId)
}

func (s *GormReminderStore) ReleaseNotification(ctx context.Context, entry *models.NotificationLog) error {
	return models.ReleaseNotification(s.DB.WithContext(ctx), entry)
}
