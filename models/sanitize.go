package models

import (
	"context"
	"strconv"
	"strings"

	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
)

// Request payloads. Every optional field carries its default in a `default` tag;
// Sanitize applies them once, then checks the required fields.

type InvoiceParty struct {
	NewCustomer
	InvoiceNo utils.OptionalString `json:"invoiceNo" validate:"required"`
	Date      utils.OptionalDate   `json:"date"`
}

type NewSalesInvoiceDetail struct {
	ProductId         utils.OptionalInt     `json:"product_id" validate:"required,gt=0"`
	HsnCode           utils.OptionalString  `json:"hsn_code"`
	Quantity          utils.OptionalDecimal `json:"quantity" default:"0" validate:"gte=0"`
	Unit              utils.OptionalString  `json:"unit"`
	Rate              utils.OptionalDecimal `json:"rate" default:"0"`
	GstPercentage     utils.OptionalDecimal `json:"gst" default:"0"`
	Amount            utils.OptionalDecimal `json:"amount" default:"0"`
	PriceIncludingGst utils.OptionalDecimal `json:"priceIncludingGst" default:"0"`
}

type PaymentSummary struct {
	TotalWithGst    utils.OptionalDecimal `json:"totalWithGst" default:"0"`
	Gst             utils.OptionalDecimal `json:"gst" default:"0"`
	GstCost         utils.OptionalDecimal `json:"gstCost" default:"0"`
	CgstCost        utils.OptionalDecimal `json:"cgstCost" default:"0"`
	SgstCost        utils.OptionalDecimal `json:"sgstCost" default:"0"`
	DiscountType    utils.OptionalString  `json:"discountType" default:"%"`
	DiscountValue   utils.OptionalDecimal `json:"discountValue" default:"0"`
	TransportCharge utils.OptionalDecimal `json:"transportCharge" default:"0"`
	Total           utils.OptionalDecimal `json:"total" default:"0"`
	PaymentType     utils.OptionalString  `json:"paymentType" default:"Cash"`
	PaymentStatus   utils.OptionalString  `json:"paymentStatus" default:"Full Payment"`
	AdvanceAmount   utils.OptionalDecimal `json:"advanceAmount" default:"0"`
	DueDate         utils.OptionalDate    `json:"dueDate"`
}

type NewSalesInvoice struct {
	Customer    *InvoiceParty           `json:"customer" validate:"required"`
	Products    []NewSalesInvoiceDetail `json:"products" validate:"required,min=1,dive"`
	SummaryData *PaymentSummary         `json:"summaryData" validate:"required"`
	CreatedBy   utils.OptionalInt       `json:"created_by" default:"1"`
}

type UpdateSalesInvoicePayment struct {
	AdvanceAmount         utils.OptionalDecimal `json:"advance_amount" default:"0"`
	DueDate               utils.OptionalDate    `json:"due_date"`
	PaymentStatus         utils.OptionalString  `json:"payment_status"`
	PaymentSettlementDate utils.OptionalDate    `json:"payment_settlement_date"`
}

// Sanitize fills defaults and rejects requests missing the customer, line items,
// payment summary or invoice number.
func (input *NewSalesInvoice) Sanitize() error {
	if input == nil {
		return utils.NewValidationError("Missing required invoice data", nil)
	}
	if err := utils.ApplyDefaults(input); err != nil {
		return utils.NewValidationError("Invalid invoice data", map[string]string{"defaults": err.Error()})
	}
	return utils.ValidateStruct("Missing required invoice data", input)
}

func (input *UpdateSalesInvoicePayment) Sanitize() error {
	if input == nil {
		return utils.NewValidationError("Invalid payment_status value", nil)
	}
	if err := utils.ApplyDefaults(input); err != nil {
		return utils.NewValidationError("Invalid payment data", map[string]string{"defaults": err.Error()})
	}
	return nil
}

func (input *NewSalesInvoice) actor(ctx context.Context) string {
	if name, ok := utils.GetUserNameFromContext(ctx); ok && name != "" {
		return name
	}
	return strconv.Itoa(input.CreatedBy.Value)
}

func (input *NewSalesInvoice) paymentTerms() PaymentTerms {
	s := input.SummaryData
	return PaymentTerms{
		PaymentType:   s.PaymentType.Value,
		PaymentStatus: PaymentStatus(s.PaymentStatus.Value),
		AdvanceAmount: s.AdvanceAmount.Value,
		DueDate:       s.DueDate.Ptr(),
	}
}

// toSalesInvoice maps a sanitized request onto unsaved rows. CustomerId and ids are set later.
func (input *NewSalesInvoice) toSalesInvoice(businessId string, payment PaymentState) (*SalesInvoice, []SalesInvoiceDetail) {
	s := input.SummaryData
	invoice := &SalesInvoice{
		BusinessId:              businessId,
		InvoiceNumber:           strings.TrimSpace(input.Customer.InvoiceNo.Value),
		InvoiceDate:             input.Customer.Date.Ptr(),
		PlaceOfSupply:           input.Customer.PlaceOfSupply.Ptr(),
		VehicleNumber:           input.Customer.VehicleNo.Ptr(),
		Subtotal:                s.TotalWithGst.Value,
		GstPercentage:           s.Gst.Value,
		GstAmount:               s.GstCost.Value,
		CgstAmount:              s.CgstCost.Value,
		SgstAmount:              s.SgstCost.Value,
		DiscountType:            s.DiscountType.Value,
		DiscountValue:           s.DiscountValue.Value,
		TransportCharge:         s.TransportCharge.Value,
		TotalAmount:             s.Total.Value,
		PaymentType:             payment.PaymentType,
		PaymentStatus:           payment.PaymentStatus,
		AdvanceAmount:           payment.AdvanceAmount,
		DueDate:                 payment.DueDate,
		PaymentCompletionStatus: payment.PaymentCompletionStatus,
		PaymentSettlementDate:   payment.PaymentSettlementDate,
		CreatedBy:               input.CreatedBy.Value,
	}

	details := make([]SalesInvoiceDetail, 0, len(input.Products))
	for _, p := range input.Products {
		details = append(details, SalesInvoiceDetail{
			BusinessId:    businessId,
			ProductId:     p.ProductId.Value,
			HsnCode:       p.HsnCode.Ptr(),
			Quantity:      p.Quantity.Value,
			Unit:          p.Unit.Ptr(),
			Rate:          p.Rate.Value,
			GstPercentage: p.GstPercentage.Value,
			BaseAmount:    p.Amount.Value,
			TotalWithGst:  p.PriceIncludingGst.Value,
		})
	}
	return invoice, details
}

// balanceDue is what remains to be collected on an advance invoice.
func balanceDue(total, advance decimal.Decimal) decimal.Decimal {
	b := total.Sub(advance)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}
