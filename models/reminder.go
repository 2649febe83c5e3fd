package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DueSoonHorizonDays is how far ahead a due date must be, exactly, to get a reminder.
const DueSoonHorizonDays = 2

// ReminderInvoice is an open advance invoice as read for classification.
type ReminderInvoice struct {
	InvoiceId      int        `json:"invoice_id"`
	BusinessId     string     `json:"business_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	InvoiceDate    *time.Time `json:"invoice_date"`
	CustomerId     int        `json:"customer_id"`
	CustomerName   *string    `json:"name"`
	Email          *string    `json:"email"`
	Mobile         *string    `json:"mobile"`
	WhatsappNumber *string    `json:"whatsapp_number"`
	GstNumber      *string    `json:"gst_number"`
	Address        *string    `json:"address"`
	State          *string    `json:"state"`
	Pincode        *string    `json:"pincode"`
	PlaceOfSupply  *string    `json:"place_of_supply"`
	VehicleNumber  *string    `json:"vehicle_number"`

	PaymentType             string           `json:"payment_type"`
	Subtotal                decimal.Decimal  `json:"subtotal"`
	GstAmount               decimal.Decimal  `json:"gst_amount"`
	DiscountValue           decimal.Decimal  `json:"discount_value"`
	TransportCharge         decimal.Decimal  `json:"transport_charge"`
	TotalAmount             decimal.Decimal  `json:"total_amount"`
	AdvanceAmount           decimal.Decimal  `json:"advance_amount"`
	PaymentCompletionStatus CompletionStatus `json:"payment_completion_status"`
	PaymentSettlementDate   *time.Time       `json:"payment_settlement_date"`
	DueDate                 time.Time        `json:"due_date"`
	CreatedAt               time.Time        `json:"created_at"`
}

// ReminderNotice is a classified invoice with its due date as YYYY-MM-DD.
type ReminderNotice struct {
	ReminderInvoice
	DueDate    string          `json:"dueDate"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

type ReminderBuckets struct {
	Reminders []ReminderNotice `json:"reminders"`
	Overdues  []ReminderNotice `json:"overdues"`
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ClassifyReminders buckets invoices against today. Due exactly DueSoonHorizonDays from
// today is due soon; due before today is overdue; everything else is in neither list.
// Input order is preserved within each bucket.
func ClassifyReminders(today time.Time, invoices []ReminderInvoice) ReminderBuckets {
	day := calendarDay(today)
	dueSoon := day.AddDate(0, 0, DueSoonHorizonDays)

	buckets := ReminderBuckets{Reminders: []ReminderNotice{}, Overdues: []ReminderNotice{}}
	for _, inv := range invoices {
		due := calendarDay(inv.DueDate)
		notice := ReminderNotice{
			ReminderInvoice: inv,
			DueDate:         utils.FormatDate(due),
			BalanceDue:      balanceDue(inv.TotalAmount, inv.AdvanceAmount),
		}
		notice.ReminderInvoice.DueDate = due
		switch {
		case due.Equal(dueSoon):
			buckets.Reminders = append(buckets.Reminders, notice)
		case due.Before(day):
			buckets.Overdues = append(buckets.Overdues, notice)
		}
	}
	return buckets
}

// Bucket returns the list for b.
func (r ReminderBuckets) Bucket(b ReminderBucket) []ReminderNotice {
	if b == ReminderBucketOverdue {
		return r.Overdues
	}
	return r.Reminders
}

// ListReminderCandidates reads open advance invoices (Advance, Pending, due date set).
// An empty businessId reads every business; the caller must then skip tenant scoping.
func ListReminderCandidates(db *gorm.DB, businessId string) ([]ReminderInvoice, error) {
	q := db.Table("sales_invoices AS i").
		Select(`i.id AS invoice_id, i.business_id, i.invoice_number, i.invoice_date, i.customer_id,
			c.name AS customer_name, c.email, c.mobile, c.whatsapp_number, c.gst_number,
			c.address, c.state, c.pincode, c.place_of_supply, c.vehicle_number,
			i.payment_type, i.subtotal, i.gst_amount, i.discount_value, i.transport_charge,
			i.total_amount, i.advance_amount, i.payment_completion_status, i.payment_settlement_date,
			i.due_date, i.created_at`).
		Joins("JOIN customers c ON c.id = i.customer_id").
		Where("i.payment_status = ? AND i.payment_completion_status = ? AND i.due_date IS NOT NULL",
			PaymentStatusAdvance, CompletionStatusPending)
	if businessId != "" {
		q = q.Where("i.business_id = ?", businessId)
	}

	var rows []ReminderInvoice
	if err := q.Order("i.due_date").Order("i.id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetReminderStatus classifies the business's open advance invoices against today. Read only.
func (s *InvoiceService) GetReminderStatus(ctx context.Context) (*ReminderBuckets, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.GetReminderStatus")
	defer span.End()

	businessId, err := businessIdFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := ListReminderCandidates(s.DB.WithContext(ctx), businessId)
	if err != nil {
		config.LogError(s.Logger, moduleSalesInvoice, "GetReminderStatus", "query reminder candidates", businessId, err)
		return nil, utils.WrapPersistence("list reminder candidates", err)
	}
	buckets := ClassifyReminders(s.Today(), rows)
	return &buckets, nil
}
