package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
)

const EventInvoiceCreated = "invoice.created"

type InvoiceCreatedPayload struct {
	InvoiceId     int    `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	DocumentUrl   string `json:"document_url"`
}

// PubSubInvoiceNotifier publishes invoice.created for the mailer.
type PubSubInvoiceNotifier struct {
	Publisher NotificationPublisher
}

func NewPubSubInvoiceNotifier(publisher NotificationPublisher) *PubSubInvoiceNotifier {
	return &PubSubInvoiceNotifier{Publisher: publisher}
}

func (n *PubSubInvoiceNotifier) InvoiceCreated(ctx context.Context, invoice *models.SalesInvoice, customer *models.Customer, documentUrl string) error {
	payload := InvoiceCreatedPayload{
		InvoiceId:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		DocumentUrl:   documentUrl,
	}
	if customer != nil {
		payload.CustomerName = utils.DereferencePtr(customer.Name, "")
		payload.CustomerEmail = utils.DereferencePtr(customer.Email, "")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	_, err = n.Publisher.Publish(ctx, config.NotificationMessage{
		EventType:     EventInvoiceCreated,
		BusinessId:    invoice.BusinessId,
		ReferenceId:   invoice.ID,
		ReferenceType: "sales_invoice",
		OccurredAt:    time.Now().UTC(),
		CorrelationId: correlationId,
		Payload:       body,
	})
	return err
}
