package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/invoice_backend/utils"
	"gorm.io/gorm"
)

// NotificationLog records a reminder handed to the mailer.
// Unique constraint: (invoice_id, bucket, notified_on), so one reminder per invoice per bucket per day.
type NotificationLog struct {
	ID         int            `gorm:"primary_key" json:"id"`
	BusinessId string         `gorm:"size:64;not null;index" json:"business_id"`
	InvoiceId  int            `gorm:"not null;index:uniq_notification,unique,priority:1" json:"invoice_id"`
	Bucket     ReminderBucket `gorm:"size:20;not null;index:uniq_notification,unique,priority:2" json:"bucket"`
	NotifiedOn time.Time      `gorm:"type:date;not null;index:uniq_notification,unique,priority:3" json:"notified_on"`
	MessageId  string         `gorm:"size:255" json:"message_id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

var ErrAlreadyNotified = errors.New("reminder already sent today")

// ClaimNotification inserts the log row for (invoice, bucket, day).
// Returns ErrAlreadyNotified when another run already claimed it.
func ClaimNotification(tx *gorm.DB, businessId string, invoiceId int, bucket ReminderBucket, day time.Time) (*NotificationLog, error) {
	entry := NotificationLog{
		BusinessId: businessId,
		InvoiceId:  invoiceId,
		Bucket:     bucket,
		NotifiedOn: calendarDay(day),
	}
	if err := tx.Create(&entry).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyNotified
		}
		return nil, err
	}
	return &entry, nil
}

// RecordNotificationMessage stores the broker message id on a claimed row.
func RecordNotificationMessage(tx *gorm.DB, entry *NotificationLog, messageId string) error {
	return tx.Model(entry).Update("message_id", messageId).Error
}

// ReleaseNotification deletes a claim whose publish failed, so the next run retries it.
func ReleaseNotification(tx *gorm.DB, entry *NotificationLog) error {
	return tx.Delete(entry).Error
}
