package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/mmdatafocus/invoice_backend/workflow"
	"github.com/sirupsen/logrus"
)

const moduleHandlers = "InvoiceHandlers"

type invoiceAPI interface {
	CreateSalesInvoice(ctx context.Context, input *models.NewSalesInvoice) (*models.CreateSalesInvoiceResult, error)
	UpdateSalesInvoicePayment(ctx context.Context, invoiceId int, input *models.UpdateSalesInvoicePayment) (*models.SalesInvoice, error)
	ListSalesInvoices(ctx context.Context) ([]*models.SalesInvoiceListing, error)
	GetReminderStatus(ctx context.Context) (*models.ReminderBuckets, error)
}

type reminderSender interface {
	DispatchBusiness(ctx context.Context, businessId string) (*workflow.DispatchResult, error)
}

type invoiceHandlers struct {
	invoices  invoiceAPI
	reminders reminderSender
	documents *utils.LocalStore
	logger    *logrus.Logger
}

func (h *invoiceHandlers) register(api *gin.RouterGroup) {
	api.POST("/invoices/create", h.createInvoice)
	api.PUT("/invoices/update/:invoice_id", h.updateInvoicePayment)
	api.GET("/invoices/get-invoice", h.listInvoices)
	api.GET("/send/check-reminder-status", h.checkReminderStatus)
	api.GET("/send/send-reminders", h.sendReminders)
	if h.documents != nil {
		api.GET("/invoices/documents/:business_id/:file", h.getInvoiceDocument)
	}
}

func (h *invoiceHandlers) abortWithError(c *gin.Context, funcName string, err error) {
	status := utils.HTTPStatusForError(err)
	if status >= http.StatusInternalServerError {
		config.LogError(h.logger, moduleHandlers, funcName, c.FullPath(), nil, err)
	}
	body := gin.H{"success": false, "message": utils.PublicMessage(err)}
	var vErr *utils.ValidationError
	if errors.As(err, &vErr) && len(vErr.Details) > 0 {
		body["details"] = vErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *invoiceHandlers) createInvoice(c *gin.Context) {
	var input models.NewSalesInvoice
	if err := c.ShouldBindJSON(&input); err != nil {
		h.abortWithError(c, "createInvoice", utils.NewValidationError("Missing required invoice data", map[string]string{"body": err.Error()}))
		return
	}

	result, err := h.invoices.CreateSalesInvoice(c.Request.Context(), &input)
	if err != nil {
		h.abortWithError(c, "createInvoice", err)
		return
	}

	body := gin.H{
		"success":    true,
		"invoice_id": result.Invoice.ID,
	}
	if result.DocumentError != nil {
		body["message"] = "Invoice created, but document generation failed"
		body["documentError"] = result.DocumentError.Error()
	} else {
		body["message"] = "Invoice created successfully"
		if result.DocumentUrl != "" {
			body["pdfUrl"] = result.DocumentUrl
		}
	}
	c.JSON(http.StatusCreated, body)
}

// getInvoiceDocument serves a locally stored workbook to its own business only.
func (h *invoiceHandlers) getInvoiceDocument(c *gin.Context) {
	businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
	owner := c.Param("business_id")
	file := c.Param("file")
	base := strings.TrimSuffix(file, ".xlsx")
	if owner != utils.SafeFileName(businessId) || base == file || !strings.HasPrefix(base, "invoice-") || utils.SafeFileName(base) != base {
		h.abortWithError(c, "getInvoiceDocument", utils.ErrorRecordNotFound)
		return
	}
	path, err := h.documents.Path(owner + "/" + file)
	if err != nil {
		h.abortWithError(c, "getInvoiceDocument", utils.ErrorRecordNotFound)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		h.abortWithError(c, "getInvoiceDocument", utils.ErrorRecordNotFound)
		return
	}
	c.FileAttachment(path, file)
}

func (h *invoiceHandlers) updateInvoicePayment(c *gin.Context) {
	invoiceId, err := strconv.Atoi(c.Param("invoice_id"))
	if err != nil || invoiceId <= 0 {
		h.abortWithError(c, "updateInvoicePayment", utils.ErrorRecordNotFound)
		return
	}
	var input models.UpdateSalesInvoicePayment
	if err := c.ShouldBindJSON(&input); err != nil {
		h.abortWithError(c, "updateInvoicePayment", utils.NewValidationError("Invalid payment data", map[string]string{"body": err.Error()}))
		return
	}

	invoice, err := h.invoices.UpdateSalesInvoicePayment(c.Request.Context(), invoiceId, &input)
	if err != nil {
		h.abortWithError(c, "updateInvoicePayment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Invoice updated successfully",
		"invoice": invoice,
	})
}

func (h *invoiceHandlers) listInvoices(c *gin.Context) {
	invoices, err := h.invoices.ListSalesInvoices(c.Request.Context())
	if err != nil {
		h.abortWithError(c, "listInvoices", err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *invoiceHandlers) checkReminderStatus(c *gin.Context) {
	buckets, err := h.invoices.GetReminderStatus(c.Request.Context())
	if err != nil {
		h.abortWithError(c, "checkReminderStatus", err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *invoiceHandlers) sendReminders(c *gin.Context) {
	if h.reminders == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "reminder dispatch is not configured"})
		return
	}
	businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
	result, err := h.reminders.DispatchBusiness(c.Request.Context(), businessId)
	if errors.Is(err, utils.ErrLockNotObtained) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "message": "reminder dispatch already running"})
		return
	}
	if err != nil {
		h.abortWithError(c, "sendReminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message(),
		"reminders": result.Notified.Reminders,
		"overdues":  result.Notified.Overdues,
	})
}
