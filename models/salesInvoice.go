package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const moduleSalesInvoice = "SalesInvoice"

var tracer = otel.Tracer("github.com/mmdatafocus/invoice_backend/models")

type SalesInvoice struct {
	ID                      int                  `gorm:"primary_key" json:"invoice_id"`
	BusinessId              string               `gorm:"size:64;not null;index:uniq_invoice_number,unique,priority:1" json:"business_id"`
	CustomerId              int                  `gorm:"index;not null" json:"customer_id"`
	InvoiceNumber           string               `gorm:"size:100;not null;index:uniq_invoice_number,unique,priority:2" json:"invoice_number"`
	InvoiceDate             *time.Time           `gorm:"type:date" json:"invoice_date"`
	PlaceOfSupply           *string              `gorm:"size:100" json:"place_of_supply"`
	VehicleNumber           *string              `gorm:"size:50" json:"vehicle_number"`
	Subtotal                decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	GstPercentage           decimal.Decimal      `gorm:"type:decimal(7,4);default:0" json:"gst_percentage"`
	GstAmount               decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"gst_amount"`
	CgstAmount              decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"cgst_amount"`
	SgstAmount              decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"sgst_amount"`
	DiscountType            string               `gorm:"size:10;not null;default:'%'" json:"discount_type"`
	DiscountValue           decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"discount_value"`
	TransportCharge         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"transport_charge"`
	TotalAmount             decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaymentType             string               `gorm:"size:50;not null;default:'Cash'" json:"payment_type"`
	PaymentStatus           PaymentStatus        `gorm:"type:enum('Full Payment','Advance');not null;default:'Full Payment'" json:"payment_status"`
	AdvanceAmount           decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"advance_amount"`
	DueDate                 *time.Time           `gorm:"type:date;index" json:"due_date"`
	PaymentCompletionStatus CompletionStatus     `gorm:"type:enum('Pending','Completed');not null;default:'Completed'" json:"payment_completion_status"`
	PaymentSettlementDate   *time.Time           `gorm:"type:date" json:"payment_settlement_date"`
	CreatedBy               int                  `gorm:"not null;default:1" json:"created_by"`
	Details                 []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details,omitempty"`
	CreatedAt               time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID             int             `gorm:"primary_key" json:"item_id"`
	BusinessId     string          `gorm:"size:64;index;not null" json:"business_id"`
	SalesInvoiceId int             `gorm:"index;not null" json:"invoice_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	HsnCode        *string         `gorm:"size:20" json:"hsn_code"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit           *string         `gorm:"size:20" json:"unit"`
	Rate           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	GstPercentage  decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"gst_percentage"`
	BaseAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_amount"`
	TotalWithGst   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_with_gst"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// InvoiceDocumentGenerator renders a committed invoice and returns a reference clients can fetch.
type InvoiceDocumentGenerator interface {
	GenerateInvoiceDocument(ctx context.Context, invoice *SalesInvoice, customer *Customer) (string, error)
}

// InvoiceNotifier hands a committed invoice to the external mailer.
type InvoiceNotifier interface {
	InvoiceCreated(ctx context.Context, invoice *SalesInvoice, customer *Customer, documentUrl string) error
}

type CreateSalesInvoiceResult struct {
	Invoice       *SalesInvoice
	DocumentUrl   string
	DocumentError error
}

// InvoiceService owns the invoice write path and the reminder read path.
type InvoiceService struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Documents InvoiceDocumentGenerator
	Notifier  InvoiceNotifier
	Location  *time.Location
	Now       func() time.Time
}

func NewInvoiceService(db *gorm.DB, logger *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		DB:       db,
		Logger:   logger,
		Location: config.BusinessLocation(),
		Now:      time.Now,
	}
}

func (s *InvoiceService) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Today is the current calendar day in the business time zone.
func (s *InvoiceService) Today() time.Time {
	now := s.now()
	return utils.ConvertToDate(now, now.Location())
}

func businessIdFrom(ctx context.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", utils.NewValidationError("business id is required", nil)
	}
	return businessId, nil
}

// CreateSalesInvoice persists the customer (when new), the invoice, its lines and the stock
// decrements in one transaction. A line that would drive stock negative aborts everything.
// Document generation and the created notification run after commit and never undo it.
func (s *InvoiceService) CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice) (*CreateSalesInvoiceResult, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.CreateSalesInvoice")
	defer span.End()

	businessId, err := businessIdFrom(ctx)
	if err != nil {
		return nil, err
	}
	if input != nil && !input.CreatedBy.Set {
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			input.CreatedBy = utils.NewOptionalInt(userId)
		}
	}
	if err := input.Sanitize(); err != nil {
		return nil, err
	}

	payment, err := DerivePaymentOnCreate(input.paymentTerms(), s.now())
	if err != nil {
		return nil, err
	}
	invoice, details := input.toSalesInvoice(businessId, payment)
	span.SetAttributes(
		attribute.String("invoice.number", invoice.InvoiceNumber),
		attribute.Int("invoice.lines", len(details)),
	)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerId, err := ResolveCustomer(tx, businessId, &input.Customer.NewCustomer)
		if err != nil {
			return utils.WrapPersistence("resolve customer", err)
		}
		invoice.CustomerId = customerId

		if err := tx.Omit(clause.Associations).Create(invoice).Error; err != nil {
			if utils.IsDuplicateKeyError(err) {
				return &utils.PersistenceError{
					Op:  "insert invoice",
					Err: fmt.Errorf("%w: %s", utils.ErrDuplicateInvoiceNumber, invoice.InvoiceNumber),
				}
			}
			return utils.WrapPersistence("insert invoice", err)
		}

		for i := range details {
			details[i].SalesInvoiceId = invoice.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return utils.WrapPersistence("insert invoice details", err)
		}

		ref := StockReference{InvoiceId: invoice.ID, InvoiceNumber: invoice.InvoiceNumber, Actor: input.actor(ctx)}
		for _, d := range details {
			if _, err := DecrementStock(tx, businessId, d.ProductId, d.Quantity, ref); err != nil {
				return utils.WrapPersistence("decrement stock", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var sErr *utils.InsufficientStockError
		if errors.As(err, &sErr) {
			s.Logger.WithFields(logrus.Fields{
				"module":         moduleSalesInvoice,
				"invoice_number": invoice.InvoiceNumber,
				"product_id":     sErr.ProductId,
			}).Warn("invoice rejected: insufficient stock")
		} else {
			config.LogError(s.Logger, moduleSalesInvoice, "CreateSalesInvoice", "transaction aborted", invoice.InvoiceNumber, err)
		}
		return nil, err
	}
	invoice.Details = details

	s.Logger.WithFields(logrus.Fields{
		"module":         moduleSalesInvoice,
		"business_id":    businessId,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
	}).Info("invoice created")

	result := &CreateSalesInvoiceResult{Invoice: invoice}
	customer := input.Customer.NewCustomer.toCustomer(businessId)
	customer.ID = invoice.CustomerId

	if s.Documents != nil {
		url, docErr := s.Documents.GenerateInvoiceDocument(ctx, invoice, customer)
		if docErr != nil {
			result.DocumentError = &utils.DocumentGenerationError{InvoiceNumber: invoice.InvoiceNumber, Err: docErr}
			config.LogError(s.Logger, moduleSalesInvoice, "CreateSalesInvoice", "document generation failed", invoice.ID, docErr)
		} else {
			result.DocumentUrl = url
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.InvoiceCreated(ctx, invoice, customer, result.DocumentUrl); err != nil {
			config.LogError(s.Logger, moduleSalesInvoice, "CreateSalesInvoice", "invoice.created notification failed", invoice.ID, err)
		}
	}
	return result, nil
}

// UpdateSalesInvoicePayment records a settlement change. Unknown ids return
// utils.ErrorRecordNotFound; a status outside the enumeration leaves the row untouched.
func (s *InvoiceService) UpdateSalesInvoicePayment(ctx context.Context, invoiceId int, input *UpdateSalesInvoicePayment) (*SalesInvoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.UpdateSalesInvoicePayment")
	defer span.End()

	businessId, err := businessIdFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Sanitize(); err != nil {
		return nil, err
	}

	var invoice SalesInvoice
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, invoiceId).
			Take(&invoice).Error
		if err != nil {
			return utils.WrapPersistence("load invoice", err)
		}

		payment, err := DerivePaymentOnUpdate(PaymentUpdate{
			PaymentStatus:  PaymentStatus(input.PaymentStatus.Value),
			AdvanceAmount:  input.AdvanceAmount.Value,
			DueDate:        input.DueDate.Ptr(),
			SettlementDate: input.PaymentSettlementDate.Ptr(),
		}, s.now())
		if err != nil {
			return err
		}

		err = tx.Model(&invoice).Updates(map[string]interface{}{
			"advance_amount":            payment.AdvanceAmount,
			"due_date":                  payment.DueDate,
			"payment_status":            payment.PaymentStatus,
			"payment_completion_status": payment.PaymentCompletionStatus,
			"payment_settlement_date":   payment.PaymentSettlementDate,
		}).Error
		if err != nil {
			return utils.WrapPersistence("update invoice payment", err)
		}
		invoice.AdvanceAmount = payment.AdvanceAmount
		invoice.DueDate = payment.DueDate
		invoice.PaymentStatus = payment.PaymentStatus
		invoice.PaymentCompletionStatus = payment.PaymentCompletionStatus
		invoice.PaymentSettlementDate = payment.PaymentSettlementDate
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if utils.HTTPStatusForError(err) >= 500 {
			config.LogError(s.Logger, moduleSalesInvoice, "UpdateSalesInvoicePayment", "update failed", invoiceId, err)
		}
		return nil, err
	}
	return &invoice, nil
}

// SalesInvoiceListing is an invoice with its customer and creator display fields.
type SalesInvoiceListing struct {
	SalesInvoice
	CustomerName          *string                    `json:"customer_name"`
	CustomerMobile        *string                    `json:"customer_mobile"`
	GstNumber             *string                    `json:"gst_number"`
	Email                 *string                    `json:"email"`
	WhatsappNumber        *string                    `json:"whatsapp_number"`
	Address               *string                    `json:"address"`
	State                 *string                    `json:"state"`
	Pincode               *string                    `json:"pincode"`
	CustomerPlaceOfSupply *string                    `json:"customer_place_of_supply"`
	CustomerVehicleNumber *string                    `json:"customer_vehicle_number"`
	CreatedByFirstName    *string                    `json:"created_by_first_name"`
	CreatedByLastName     *string                    `json:"created_by_last_name"`
	CreatedByName         string                     `gorm:"-" json:"created_by_name"`
	Items                 []*SalesInvoiceItemListing `gorm:"-" json:"items"`
}

type SalesInvoiceItemListing struct {
	SalesInvoiceDetail
	ProductName        *string             `json:"product_name"`
	ProductDescription *string             `json:"product_description"`
	ImageUrl           *string             `json:"image_url"`
	ProductPrice       decimal.NullDecimal `json:"product_price"`
	ProductGst         decimal.NullDecimal `json:"product_gst"`
	CategoryName       *string             `json:"category_name"`
}

// ListSalesInvoices returns every invoice of the business, newest first, with its lines.
func (s *InvoiceService) ListSalesInvoices(ctx context.Context) ([]*SalesInvoiceListing, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.ListSalesInvoices")
	defer span.End()

	businessId, err := businessIdFrom(ctx)
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var invoices []*SalesInvoiceListing
	err = db.Table("sales_invoices AS i").
		Select(`i.*,
			c.name AS customer_name, c.mobile AS customer_mobile, c.gst_number,
			c.email, c.whatsapp_number, c.address, c.state, c.pincode,
			c.place_of_supply AS customer_place_of_supply, c.vehicle_number AS customer_vehicle_number,
			u.first_name AS created_by_first_name, u.last_name AS created_by_last_name`).
		Joins("LEFT JOIN customers c ON c.id = i.customer_id").
		Joins("LEFT JOIN users u ON u.id = i.created_by").
		Where("i.business_id = ?", businessId).
		Order("i.created_at DESC").
		Order("i.id DESC").
		Scan(&invoices).Error
	if err != nil {
		config.LogError(s.Logger, moduleSalesInvoice, "ListSalesInvoices", "query invoices", nil, err)
		return nil, utils.WrapPersistence("list invoices", err)
	}
	if len(invoices) == 0 {
		return []*SalesInvoiceListing{}, nil
	}

	ids := make([]int, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}

	var items []*SalesInvoiceItemListing
	err = db.Table("sales_invoice_details AS d").
		Select(`d.*,
			p.name AS product_name, p.description AS product_description, p.image_url,
			p.price AS product_price, p.gst_percentage AS product_gst,
			pc.name AS category_name`).
		Joins("LEFT JOIN products p ON p.id = d.product_id").
		Joins("LEFT JOIN product_categories pc ON pc.id = p.category_id").
		Where("d.business_id = ? AND d.sales_invoice_id IN ?", businessId, ids).
		Order("d.id").
		Scan(&items).Error
	if err != nil {
		config.LogError(s.Logger, moduleSalesInvoice, "ListSalesInvoices", "query invoice items", nil, err)
		return nil, utils.WrapPersistence("list invoice items", err)
	}

	grouped := make(map[int][]*SalesInvoiceItemListing, len(invoices))
	for _, item := range items {
		grouped[item.SalesInvoiceId] = append(grouped[item.SalesInvoiceId], item)
	}
	for _, inv := range invoices {
		inv.CreatedByName = DisplayName(inv.CreatedByFirstName, inv.CreatedByLastName)
		inv.Items = grouped[inv.ID]
		if inv.Items == nil {
			inv.Items = []*SalesInvoiceItemListing{}
		}
	}
	return invoices, nil
}
