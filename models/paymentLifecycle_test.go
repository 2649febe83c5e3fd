package models

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func TestDerivePaymentOnCreate_Defaults(t *testing.T) {
	createdAt := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	state, err := DerivePaymentOnCreate(PaymentTerms{}, createdAt)
	if err != nil {
		t.Fatalf("DerivePaymentOnCreate: %v", err)
	}
	if state.PaymentType != "Cash" {
		t.Fatalf("payment type = %q, want Cash", state.PaymentType)
	}
	if state.PaymentStatus != PaymentStatusFullPayment {
		t.Fatalf("payment status = %q, want Full Payment", state.PaymentStatus)
	}
	if !state.AdvanceAmount.IsZero() {
		t.Fatalf("advance = %s, want 0", state.AdvanceAmount)
	}
	if state.PaymentCompletionStatus != CompletionStatusCompleted {
		t.Fatalf("completion = %q, want Completed", state.PaymentCompletionStatus)
	}
	if state.PaymentSettlementDate == nil || !state.PaymentSettlementDate.Equal(day("2024-01-10")) {
		t.Fatalf("settlement = %v, want 2024-01-10", state.PaymentSettlementDate)
	}
	if state.DueDate != nil {
		t.Fatalf("due date = %v, want nil", state.DueDate)
	}
}

func TestDerivePaymentOnCreate_FullPaymentDropsDueDate(t *testing.T) {
	state, err := DerivePaymentOnCreate(PaymentTerms{
		PaymentStatus: PaymentStatusFullPayment,
		DueDate:       dayPtr("2024-02-01"),
	}, day("2024-01-10"))
	if err != nil {
		t.Fatalf("DerivePaymentOnCreate: %v", err)
	}
	if state.DueDate != nil {
		t.Fatalf("due date kept for Full Payment: %v", state.DueDate)
	}
}

func TestDerivePaymentOnCreate_Advance(t *testing.T) {
	cases := []struct {
		name       string
		advance    decimal.Decimal
		completion CompletionStatus
	}{
		{"positive advance is pending", decimal.NewFromInt(500), CompletionStatusPending},
		{"zero advance is completed", decimal.Zero, CompletionStatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, err := DerivePaymentOnCreate(PaymentTerms{
				PaymentStatus: PaymentStatusAdvance,
				AdvanceAmount: tc.advance,
				DueDate:       dayPtr("2024-01-12"),
			}, day("2024-01-10"))
			if err != nil {
				t.Fatalf("DerivePaymentOnCreate: %v", err)
			}
			if state.PaymentCompletionStatus != tc.completion {
				t.Fatalf("completion = %q, want %q", state.PaymentCompletionStatus, tc.completion)
			}
			if state.DueDate == nil || !state.DueDate.Equal(day("2024-01-12")) {
				t.Fatalf("due date = %v, want 2024-01-12", state.DueDate)
			}
			if state.PaymentSettlementDate != nil {
				t.Fatalf("settlement = %v, want nil for Advance", state.PaymentSettlementDate)
			}
		})
	}
}

func TestDerivePaymentOnCreate_SettlementUsesLocalDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 2024-01-09 20:00 UTC is already 2024-01-10 in IST.
	createdAt := time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC).In(loc)
	state, err := DerivePaymentOnCreate(PaymentTerms{}, createdAt)
	if err != nil {
		t.Fatalf("DerivePaymentOnCreate: %v", err)
	}
	if !state.PaymentSettlementDate.Equal(day("2024-01-10")) {
		t.Fatalf("settlement = %v, want 2024-01-10", state.PaymentSettlementDate)
	}
}

func TestDerivePaymentOnCreate_RejectsUnknownStatus(t *testing.T) {
	_, err := DerivePaymentOnCreate(PaymentTerms{PaymentStatus: "Partial"}, day("2024-01-10"))
	var vErr *utils.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDerivePaymentOnUpdate(t *testing.T) {
	today := day("2024-01-10")

	t.Run("full payment without date settles today", func(t *testing.T) {
		state, err := DerivePaymentOnUpdate(PaymentUpdate{
			PaymentStatus: PaymentStatusFullPayment,
			DueDate:       dayPtr("2024-01-20"),
		}, today)
		if err != nil {
			t.Fatalf("DerivePaymentOnUpdate: %v", err)
		}
		if state.PaymentCompletionStatus != CompletionStatusCompleted {
			t.Fatalf("completion = %q", state.PaymentCompletionStatus)
		}
		if state.PaymentSettlementDate == nil || !state.PaymentSettlementDate.Equal(today) {
			t.Fatalf("settlement = %v, want today", state.PaymentSettlementDate)
		}
		if state.DueDate != nil {
			t.Fatalf("due date kept for Full Payment: %v", state.DueDate)
		}
	})

	t.Run("full payment keeps supplied settlement date", func(t *testing.T) {
		state, err := DerivePaymentOnUpdate(PaymentUpdate{
			PaymentStatus:  PaymentStatusFullPayment,
			SettlementDate: dayPtr("2024-01-05"),
		}, today)
		if err != nil {
			t.Fatalf("DerivePaymentOnUpdate: %v", err)
		}
		if !state.PaymentSettlementDate.Equal(day("2024-01-05")) {
			t.Fatalf("settlement = %v, want 2024-01-05", state.PaymentSettlementDate)
		}
	})

	t.Run("advance is pending and clears settlement", func(t *testing.T) {
		state, err := DerivePaymentOnUpdate(PaymentUpdate{
			PaymentStatus:  PaymentStatusAdvance,
			AdvanceAmount:  decimal.NewFromInt(100),
			DueDate:        dayPtr("2024-01-20"),
			SettlementDate: dayPtr("2024-01-05"),
		}, today)
		if err != nil {
			t.Fatalf("DerivePaymentOnUpdate: %v", err)
		}
		if state.PaymentCompletionStatus != CompletionStatusPending {
			t.Fatalf("completion = %q", state.PaymentCompletionStatus)
		}
		if state.PaymentSettlementDate != nil {
			t.Fatalf("settlement = %v, want nil", state.PaymentSettlementDate)
		}
		if state.DueDate == nil || !state.DueDate.Equal(day("2024-01-20")) {
			t.Fatalf("due date = %v", state.DueDate)
		}
		if !state.AdvanceAmount.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("advance = %s", state.AdvanceAmount)
		}
	})

	t.Run("unknown and blank statuses are rejected", func(t *testing.T) {
		for _, status := range []PaymentStatus{"Partial", "", "full payment"} {
			_, err := DerivePaymentOnUpdate(PaymentUpdate{PaymentStatus: status}, today)
			var vErr *utils.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("status %q: expected ValidationError, got %v", status, err)
			}
			if vErr.Message != "Invalid payment_status value" {
				t.Fatalf("status %q: message = %q", status, vErr.Message)
			}
		}
	})
}
