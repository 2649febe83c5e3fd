package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	EventInvoiceReminder = "invoice.reminder"
	EventInvoiceOverdue  = "invoice.overdue"

	reminderLockType = "reminder-dispatch"
)

// NotificationPublisher hands a message to the broker and returns its id.
type NotificationPublisher interface {
	Publish(ctx context.Context, msg config.NotificationMessage) (string, error)
}

// ReminderPayload is the body of invoice.reminder and invoice.overdue messages.
type ReminderPayload struct {
	InvoiceId     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	Email         string          `json:"email"`
	DueDate       string          `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
}

type DispatchResult struct {
	BusinessId      string                 `json:"business_id"`
	Sent            int                    `json:"sent"`
	Skipped         int                    `json:"skipped"`
	AlreadyNotified int                    `json:"already_notified"`
	Failed          int                    `json:"failed"`
	Buckets         models.ReminderBuckets `json:"buckets"`
	// Notified holds only the notices published in this run.
	Notified models.ReminderBuckets `json:"notified"`
}

// Message is the summary returned to HTTP callers.
func (r *DispatchResult) Message() string {
	return fmt.Sprintf("%d email(s) sent.", r.Sent)
}

// ReminderDispatcher periodically classifies open advance invoices and publishes
// one reminder or overdue notice per invoice per day.
type ReminderDispatcher struct {
	Store        ReminderStore
	Publisher    NotificationPublisher
	Locker       *redislock.Client
	Logger       *logrus.Logger
	DispatcherID string

	PollInterval time.Duration
	LockTTL      time.Duration
	DedupEnabled bool
	Location     *time.Location
	Now          func() time.Time
}

func NewReminderDispatcher(store ReminderStore, publisher NotificationPublisher, locker *redislock.Client, logger *logrus.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{
		Store:        store,
		Publisher:    publisher,
		Locker:       locker,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		PollInterval: config.ReminderPollInterval(),
		LockTTL:      5 * time.Minute,
		DedupEnabled: config.ReminderDedupEnabled(),
		Location:     config.BusinessLocation(),
		Now:          time.Now,
	}
}

func (d *ReminderDispatcher) today() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return utils.ConvertToDate(now().In(loc), loc)
}

func (d *ReminderDispatcher) logger() *logrus.Entry {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(logrus.Fields{
		"field":         "ReminderDispatcher",
		"dispatcher_id": d.DispatcherID,
	})
}

// Run sweeps every business, then waits PollInterval, until ctx is done.
func (d *ReminderDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchAll(ctx); err != nil && ctx.Err() == nil {
			d.logger().WithError(err).Error("reminder sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchAll runs DispatchBusiness for each business with open advance invoices.
// A business whose lock is held elsewhere is skipped for this sweep.
func (d *ReminderDispatcher) DispatchAll(ctx context.Context) ([]*DispatchResult, error) {
	sweepCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	businesses, err := d.Store.ListReminderBusinesses(sweepCtx)
	if err != nil {
		return nil, err
	}

	results := make([]*DispatchResult, 0, len(businesses))
	for _, businessId := range businesses {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		bctx := utils.SetBusinessIdInContext(ctx, businessId)
		res, err := d.DispatchBusiness(bctx, businessId)
		if errors.Is(err, utils.ErrLockNotObtained) {
			d.logger().WithField("business_id", businessId).Info("reminder dispatch already running elsewhere")
			continue
		}
		if err != nil {
			d.logger().WithField("business_id", businessId).WithError(err).Error("reminder dispatch failed")
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// DispatchBusiness classifies one business's invoices and publishes a notice for each
// classified invoice with an email. Invoices without an email are skipped and logged.
func (d *ReminderDispatcher) DispatchBusiness(ctx context.Context, businessId string) (*DispatchResult, error) {
	if d.Locker != nil {
		release, err := utils.BusinessLock(ctx, d.Locker, businessId, reminderLockType, d.LockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	rows, err := d.Store.ListReminderCandidates(ctx, businessId)
	if err != nil {
		return nil, err
	}
	today := d.today()
	res := &DispatchResult{
		BusinessId: businessId,
		Buckets:    models.ClassifyReminders(today, rows),
		Notified: models.ReminderBuckets{
			Reminders: []models.ReminderNotice{},
			Overdues:  []models.ReminderNotice{},
		},
	}

	for _, bucket := range []models.ReminderBucket{models.ReminderBucketDueSoon, models.ReminderBucketOverdue} {
		for _, notice := range res.Buckets.Bucket(bucket) {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if !d.dispatchNotice(ctx, res, bucket, notice, today) {
				continue
			}
			if bucket == models.ReminderBucketOverdue {
				res.Notified.Overdues = append(res.Notified.Overdues, notice)
			} else {
				res.Notified.Reminders = append(res.Notified.Reminders, notice)
			}
		}
	}

	d.logger().WithFields(logrus.Fields{
		"business_id":      businessId,
		"sent":             res.Sent,
		"skipped":          res.Skipped,
		"already_notified": res.AlreadyNotified,
		"failed":           res.Failed,
	}).Info("reminder dispatch finished")
	return res, nil
}

// dispatchNotice reports whether a message was published for the notice.
func (d *ReminderDispatcher) dispatchNotice(ctx context.Context, res *DispatchResult, bucket models.ReminderBucket, notice models.ReminderNotice, today time.Time) bool {
	log := d.logger().WithFields(logrus.Fields{
		"business_id":    notice.BusinessId,
		"invoice_id":     notice.InvoiceId,
		"invoice_number": notice.InvoiceNumber,
		"bucket":         bucket,
	})

	email := strings.TrimSpace(utils.DereferencePtr(notice.Email, ""))
	if email == "" {
		res.Skipped++
		log.Warn("no email for invoice, reminder skipped")
		return false
	}

	var claim *models.NotificationLog
	if d.DedupEnabled {
		entry, err := d.Store.ClaimNotification(ctx, notice.BusinessId, notice.InvoiceId, bucket, today)
		if errors.Is(err, models.ErrAlreadyNotified) {
			res.AlreadyNotified++
			return false
		}
		if err != nil {
			res.Failed++
			log.WithError(err).Error("claim reminder failed")
			return false
		}
		claim = entry
	}

	msg, err := reminderMessage(ctx, bucket, notice, email)
	if err == nil {
		var messageId string
		messageId, err = d.Publisher.Publish(ctx, msg)
		if err == nil {
			res.Sent++
			if claim != nil {
				if rerr := d.Store.RecordNotificationMessage(ctx, claim, messageId); rerr != nil {
					log.WithError(rerr).Warn("record reminder message id failed")
				}
			}
			return true
		}
	}

	res.Failed++
	log.WithError(err).Error("publish reminder failed")
	if claim != nil {
		if rerr := d.Store.ReleaseNotification(ctx, claim); rerr != nil {
			log.WithError(rerr).Error("release reminder claim failed")
		}
	}
	return false
}

func reminderMessage(ctx context.Context, bucket models.ReminderBucket, notice models.ReminderNotice, email string) (config.NotificationMessage, error) {
	eventType := EventInvoiceReminder
	if bucket == models.ReminderBucketOverdue {
		eventType = EventInvoiceOverdue
	}
	payload, err := json.Marshal(ReminderPayload{
		InvoiceId:     notice.InvoiceId,
		InvoiceNumber: notice.InvoiceNumber,
		CustomerName:  utils.DereferencePtr(notice.CustomerName, ""),
		Email:         email,
		DueDate:       notice.DueDate,
		TotalAmount:   notice.TotalAmount,
		AdvanceAmount: notice.AdvanceAmount,
		BalanceDue:    notice.BalanceDue,
	})
	if err != nil {
		return config.NotificationMessage{}, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return config.NotificationMessage{
		EventType:     eventType,
		BusinessId:    notice.BusinessId,
		ReferenceId:   notice.InvoiceId,
		ReferenceType: "sales_invoice",
		OccurredAt:    time.Now().UTC(),
		CorrelationId: correlationId,
		Payload:       payload,
	}, nil
}
