package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mmdatafocus/invoice_backend/utils"
)

func TestPubSubInvoiceNotifier_PublishesInvoiceCreated(t *testing.T) {
	pub := &fakePublisher{}
	n := NewPubSubInvoiceNotifier(pub)
	invoice, customer := sampleInvoice()
	customer.Email = strPtr("buyer@example.com")

	ctx := utils.SetCorrelationIdInContext(context.Background(), "cid-1")
	if err := n.InvoiceCreated(ctx, invoice, customer, "/invoices/invoice-INV_2024_001.xlsx"); err != nil {
		t.Fatalf("InvoiceCreated: %v", err)
	}

	msgs := pub.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages", len(msgs))
	}
	msg := msgs[0]
	if msg.EventType != EventInvoiceCreated || msg.BusinessId != "biz-1" || msg.ReferenceId != 11 || msg.CorrelationId != "cid-1" {
		t.Fatalf("message = %+v", msg)
	}
	var payload InvoiceCreatedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	want := InvoiceCreatedPayload{
		InvoiceId:     11,
		InvoiceNumber: "INV/2024/001",
		CustomerName:  "Asha Traders",
		CustomerEmail: "buyer@example.com",
		DocumentUrl:   "/invoices/invoice-INV_2024_001.xlsx",
	}
	if payload != want {
		t.Fatalf("payload = %+v, want %+v", payload, want)
	}
}

func TestPubSubInvoiceNotifier_PropagatesPublishError(t *testing.T) {
	pub := &fakePublisher{failFor: map[int]bool{11: true}}
	invoice, customer := sampleInvoice()
	if err := NewPubSubInvoiceNotifier(pub).InvoiceCreated(context.Background(), invoice, customer, ""); err == nil {
		t.Fatalf("expected publish error")
	}
}
