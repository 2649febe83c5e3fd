package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	invoiceSheet    = "Invoice"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExcelInvoiceDocuments renders invoices as xlsx workbooks and stores them in Store.
type ExcelInvoiceDocuments struct {
	Store utils.DocumentStore
}

func NewExcelInvoiceDocuments(store utils.DocumentStore) *ExcelInvoiceDocuments {
	return &ExcelInvoiceDocuments{Store: store}
}

// InvoiceDocumentName is "<business>/invoice-<number>-<id>.xlsx" with unsafe characters replaced by "_".
// Invoice numbers repeat across businesses, so the business and invoice id are part of the key.
func InvoiceDocumentName(businessId string, invoiceId int, invoiceNumber string) string {
	return fmt.Sprintf("%s/invoice-%s-%d.xlsx", utils.SafeFileName(businessId), utils.SafeFileName(invoiceNumber), invoiceId)
}

func (g *ExcelInvoiceDocuments) GenerateInvoiceDocument(ctx context.Context, invoice *models.SalesInvoice, customer *models.Customer) (string, error) {
	if g == nil || g.Store == nil {
		return "", errors.New("document store is not configured")
	}
	data, err := RenderInvoiceWorkbook(invoice, customer)
	if err != nil {
		return "", err
	}
	if invoice.BusinessId == "" {
		return "", errors.New("invoice has no business id")
	}
	return g.Store.Put(ctx, InvoiceDocumentName(invoice.BusinessId, invoice.ID, invoice.InvoiceNumber), data, xlsxContentType)
}

func cell(col string, row int) string {
	return col + fmt.Sprint(row)
}

// RenderInvoiceWorkbook lays out the header, customer block, line items and totals on one sheet.
func RenderInvoiceWorkbook(invoice *models.SalesInvoice, customer *models.Customer) ([]byte, error) {
	if invoice == nil {
		return nil, errors.New("invoice is nil")
	}
	if customer == nil {
		customer = &models.Customer{}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}

	set := func(axis string, value interface{}) error {
		return f.SetCellValue(invoiceSheet, axis, value)
	}

	invoiceDate := ""
	if invoice.InvoiceDate != nil {
		invoiceDate = utils.FormatDate(*invoice.InvoiceDate)
	}
	header := [][2]interface{}{
		{"Invoice No", invoice.InvoiceNumber},
		{"Invoice Date", invoiceDate},
		{"Customer", utils.DereferencePtr(customer.Name, "")},
		{"GSTIN", utils.DereferencePtr(customer.GstNumber, "")},
		{"Mobile", utils.DereferencePtr(customer.Mobile, "")},
		{"Address", utils.DereferencePtr(customer.Address, "")},
		{"Place of Supply", utils.DereferencePtr(invoice.PlaceOfSupply, "")},
		{"Vehicle No", utils.DereferencePtr(invoice.VehicleNumber, "")},
	}
	for i, kv := range header {
		if err := set(cell("A", i+1), kv[0]); err != nil {
			return nil, err
		}
		if err := set(cell("B", i+1), kv[1]); err != nil {
			return nil, err
		}
	}
	row := len(header) + 2
	headings := []string{"#", "Product", "HSN", "Qty", "Unit", "Rate", "GST %", "Amount", "Total incl. GST"}
	col := 'A'
	for _, h := range headings {
		if err := set(cell(string(col), row), h); err != nil {
			return nil, err
		}
		col++
	}
	for i, d := range invoice.Details {
		row++
		values := []interface{}{
			i + 1,
			d.ProductId,
			utils.DereferencePtr(d.HsnCode, ""),
			d.Quantity.InexactFloat64(),
			utils.DereferencePtr(d.Unit, ""),
			d.Rate.InexactFloat64(),
			d.GstPercentage.InexactFloat64(),
			d.BaseAmount.InexactFloat64(),
			d.TotalWithGst.InexactFloat64(),
		}
		col := 'A'
		for _, v := range values {
			if err := set(cell(string(col), row), v); err != nil {
				return nil, err
			}
			col++
		}
	}

	row += 2
	totals := [][2]interface{}{
		{"Subtotal", invoice.Subtotal.InexactFloat64()},
		{"CGST", invoice.CgstAmount.InexactFloat64()},
		{"SGST", invoice.SgstAmount.InexactFloat64()},
		{"GST", invoice.GstAmount.InexactFloat64()},
		{"Discount (" + invoice.DiscountType + ")", invoice.DiscountValue.InexactFloat64()},
		{"Transport", invoice.TransportCharge.InexactFloat64()},
		{"Total", invoice.TotalAmount.InexactFloat64()},
		{"Payment", string(invoice.PaymentStatus) + " / " + invoice.PaymentType},
		{"Advance", invoice.AdvanceAmount.InexactFloat64()},
	}
	if invoice.DueDate != nil {
		totals = append(totals, [2]interface{}{"Due Date", utils.FormatDate(*invoice.DueDate)})
	}
	for _, kv := range totals {
		if err := set(cell("H", row), kv[0]); err != nil {
			return nil, err
		}
		if err := set(cell("I", row), kv[1]); err != nil {
			return nil, err
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
