package models

import (
	"time"

	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
)

// PaymentTerms is what the caller asked for when creating an invoice.
type PaymentTerms struct {
	PaymentType   string
	PaymentStatus PaymentStatus
	AdvanceAmount decimal.Decimal
	DueDate       *time.Time
}

// PaymentState is the full set of payment columns persisted on an invoice.
type PaymentState struct {
	PaymentType             string
	PaymentStatus           PaymentStatus
	AdvanceAmount           decimal.Decimal
	DueDate                 *time.Time
	PaymentCompletionStatus CompletionStatus
	PaymentSettlementDate   *time.Time
}

// PaymentUpdate is a settlement change on an existing invoice.
type PaymentUpdate struct {
	PaymentStatus  PaymentStatus
	AdvanceAmount  decimal.Decimal
	DueDate        *time.Time
	SettlementDate *time.Time
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// DerivePaymentOnCreate derives completion and settlement from the requested terms.
// createdAt is taken in its own location; the settlement date is its calendar day.
func DerivePaymentOnCreate(terms PaymentTerms, createdAt time.Time) (PaymentState, error) {
	if terms.PaymentType == "" {
		terms.PaymentType = DefaultPaymentType
	}
	if terms.PaymentStatus == "" {
		terms.PaymentStatus = PaymentStatusFullPayment
	}
	if !terms.PaymentStatus.IsValid() {
		return PaymentState{}, utils.NewValidationError("Invalid payment_status value", map[string]string{
			"paymentStatus": string(terms.PaymentStatus),
		})
	}

	state := PaymentState{
		PaymentType:             terms.PaymentType,
		PaymentStatus:           terms.PaymentStatus,
		AdvanceAmount:           terms.AdvanceAmount,
		PaymentCompletionStatus: CompletionStatusCompleted,
	}
	if terms.PaymentStatus == PaymentStatusAdvance {
		state.DueDate = dateOnlyPtr(terms.DueDate)
		if terms.AdvanceAmount.GreaterThan(decimal.Zero) {
			state.PaymentCompletionStatus = CompletionStatusPending
		}
	}
	if terms.PaymentStatus == PaymentStatusFullPayment {
		settled := utils.ConvertToDate(createdAt, createdAt.Location())
		state.PaymentSettlementDate = &settled
	}
	return state, nil
}

// DerivePaymentOnUpdate validates the new status and derives the remaining payment columns.
// today is used as the settlement date when the caller completes the invoice without one.
func DerivePaymentOnUpdate(update PaymentUpdate, today time.Time) (PaymentState, error) {
	if !update.PaymentStatus.IsValid() {
		return PaymentState{}, utils.NewValidationError("Invalid payment_status value", map[string]string{
			"payment_status": string(update.PaymentStatus),
		})
	}

	state := PaymentState{
		PaymentStatus:           update.PaymentStatus,
		AdvanceAmount:           update.AdvanceAmount,
		PaymentCompletionStatus: CompletionStatusPending,
	}
	if update.PaymentStatus == PaymentStatusAdvance {
		state.DueDate = dateOnlyPtr(update.DueDate)
	}
	if update.PaymentStatus == PaymentStatusFullPayment {
		state.PaymentCompletionStatus = CompletionStatusCompleted
		if update.SettlementDate != nil {
			state.PaymentSettlementDate = dateOnlyPtr(update.SettlementDate)
		} else {
			settled := utils.ConvertToDate(today, today.Location())
			state.PaymentSettlementDate = &settled
		}
	}
	return state, nil
}
