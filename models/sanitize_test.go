package models

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
)

const minimalInvoiceJSON = `{
	"customer": {"name": "Asha Traders", "mobile": "98765 43210", "gst": "", "invoiceNo": "INV-001"},
	"products": [{"product_id": 7, "quantity": "3", "rate": 100, "gst": 18}],
	"summaryData": {"total": 354, "paymentStatus": null, "discountType": ""}
}`

func decodeInvoice(t *testing.T, body string) *NewSalesInvoice {
	t.Helper()
	var input NewSalesInvoice
	if err := json.Unmarshal([]byte(body), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &input
}

func TestNewSalesInvoiceSanitize_AppliesDefaults(t *testing.T) {
	input := decodeInvoice(t, minimalInvoiceJSON)
	if err := input.Sanitize(); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	s := input.SummaryData
	if s.PaymentType.Value != DefaultPaymentType || s.PaymentStatus.Value != string(PaymentStatusFullPayment) {
		t.Fatalf("payment defaults = %q/%q", s.PaymentType.Value, s.PaymentStatus.Value)
	}
	if s.DiscountType.Value != DefaultDiscountType {
		t.Fatalf("discount type = %q, want %%", s.DiscountType.Value)
	}
	if !s.AdvanceAmount.Set || !s.AdvanceAmount.Value.IsZero() {
		t.Fatalf("advance = %+v, want set 0", s.AdvanceAmount)
	}
	if !s.TransportCharge.Set || !s.TransportCharge.Value.IsZero() {
		t.Fatalf("transport = %+v, want set 0", s.TransportCharge)
	}
	if input.CreatedBy.Value != DefaultCreatedBy {
		t.Fatalf("created_by = %d, want %d", input.CreatedBy.Value, DefaultCreatedBy)
	}
	line := input.Products[0]
	if !line.Quantity.Value.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("quantity = %s, want 3", line.Quantity.Value)
	}
	if !line.Amount.Set || !line.PriceIncludingGst.Set {
		t.Fatalf("line amounts not defaulted: %+v", line)
	}
	if input.Customer.Gst.Set {
		t.Fatalf("blank gst should stay unset")
	}
}

func TestNewSalesInvoiceSanitize_RequiredFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing customer", `{"products":[{"product_id":1,"quantity":1}],"summaryData":{}}`},
		{"missing invoice number", `{"customer":{"name":"A","invoiceNo":"  "},"products":[{"product_id":1,"quantity":1}],"summaryData":{}}`},
		{"no line items", `{"customer":{"invoiceNo":"X"},"products":[],"summaryData":{}}`},
		{"missing products", `{"customer":{"invoiceNo":"X"},"summaryData":{}}`},
		{"missing summary", `{"customer":{"invoiceNo":"X"},"products":[{"product_id":1,"quantity":1}]}`},
		{"line without product", `{"customer":{"invoiceNo":"X"},"products":[{"quantity":1}],"summaryData":{}}`},
		{"negative quantity", `{"customer":{"invoiceNo":"X"},"products":[{"product_id":1,"quantity":-2}],"summaryData":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decodeInvoice(t, tc.body).Sanitize()
			var vErr *utils.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Message != "Missing required invoice data" {
				t.Fatalf("message = %q", vErr.Message)
			}
		})
	}
}

func TestNewSalesInvoiceSanitize_NilRequest(t *testing.T) {
	var input *NewSalesInvoice
	var vErr *utils.ValidationError
	if err := input.Sanitize(); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestToSalesInvoice_MapsRequest(t *testing.T) {
	input := decodeInvoice(t, `{
		"customer": {"invoiceNo": " INV-9 ", "date": "2024-01-10", "placeOfSupply": "Kerala", "vehicleNo": "KL-07"},
		"products": [{"product_id": 3, "quantity": 2, "unit": "kg", "amount": 200, "priceIncludingGst": 236}],
		"summaryData": {"totalWithGst": 200, "gstCost": 36, "total": 236, "paymentStatus": "Advance", "advanceAmount": 100, "dueDate": "2024-01-20"},
		"created_by": 4
	}`)
	if err := input.Sanitize(); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	payment, err := DerivePaymentOnCreate(input.paymentTerms(), day("2024-01-10"))
	if err != nil {
		t.Fatalf("DerivePaymentOnCreate: %v", err)
	}
	invoice, details := input.toSalesInvoice("biz-1", payment)

	if invoice.InvoiceNumber != "INV-9" {
		t.Fatalf("invoice number = %q", invoice.InvoiceNumber)
	}
	if invoice.InvoiceDate == nil || !invoice.InvoiceDate.Equal(day("2024-01-10")) {
		t.Fatalf("invoice date = %v", invoice.InvoiceDate)
	}
	if utils.DereferencePtr(invoice.PlaceOfSupply) != "Kerala" || utils.DereferencePtr(invoice.VehicleNumber) != "KL-07" {
		t.Fatalf("place/vehicle = %v/%v", invoice.PlaceOfSupply, invoice.VehicleNumber)
	}
	if invoice.PaymentCompletionStatus != CompletionStatusPending || invoice.DueDate == nil {
		t.Fatalf("payment = %q due %v", invoice.PaymentCompletionStatus, invoice.DueDate)
	}
	if invoice.CreatedBy != 4 || input.actor(context.Background()) != "4" {
		t.Fatalf("created_by = %d actor %q", invoice.CreatedBy, input.actor(context.Background()))
	}
	if got := input.actor(utils.SetUserNameInContext(context.Background(), "asha")); got != "asha" {
		t.Fatalf("actor with session user = %q", got)
	}
	if len(details) != 1 || details[0].ProductId != 3 || !details[0].TotalWithGst.Equal(decimal.NewFromInt(236)) {
		t.Fatalf("details = %+v", details)
	}
	if details[0].BusinessId != "biz-1" {
		t.Fatalf("detail business id = %q", details[0].BusinessId)
	}
}

func TestUpdateSalesInvoicePaymentSanitize_DefaultsAdvance(t *testing.T) {
	var input UpdateSalesInvoicePayment
	if err := json.Unmarshal([]byte(`{"payment_status":"Full Payment"}`), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := input.Sanitize(); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !input.AdvanceAmount.Set || !input.AdvanceAmount.Value.IsZero() {
		t.Fatalf("advance = %+v", input.AdvanceAmount)
	}
	if input.PaymentSettlementDate.Set {
		t.Fatalf("settlement should stay unset")
	}
}
