package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockSummary holds the on-hand quantity of one product. CurrentQty never goes below zero.
type StockSummary struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"size:64;not null;index:uniq_stock_product,unique,priority:1" json:"business_id"`
	ProductId  int             `gorm:"not null;index:uniq_stock_product,unique,priority:2" json:"product_id"`
	CurrentQty decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_qty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type StockChange struct {
	ProductId int             `json:"product_id"`
	OldQty    decimal.Decimal `json:"old_qty"`
	NewQty    decimal.Decimal `json:"new_qty"`
}

// StockReference ties a stock change to the document and actor that caused it.
type StockReference struct {
	InvoiceId     int
	InvoiceNumber string
	Actor         string
}

func (r StockReference) reason() string {
	return fmt.Sprintf("Invoice #%s", r.InvoiceNumber)
}

// lockStockSummary reads the product's row FOR UPDATE. The lock is held until tx ends.
func lockStockSummary(tx *gorm.DB, businessId string, productId int) (*StockSummary, error) {
	var summary StockSummary
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Take(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// DecrementStock removes qty of productId for an invoice line.
// A missing row counts as zero on hand. A decrement that would go negative returns
// *utils.InsufficientStockError and writes nothing; the caller must abort the transaction.
func DecrementStock(tx *gorm.DB, businessId string, productId int, qty decimal.Decimal, ref StockReference) (*StockChange, error) {
	summary, err := lockStockSummary(tx, businessId, productId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = nil
	} else if err != nil {
		return nil, err
	}

	oldQty := decimal.Zero
	if summary != nil {
		oldQty = summary.CurrentQty
	}
	newQty := oldQty.Sub(qty)
	if newQty.IsNegative() {
		return nil, &utils.InsufficientStockError{ProductId: productId, Available: oldQty, Requested: qty}
	}

	if summary != nil {
		if err := tx.Model(summary).Update("current_qty", newQty).Error; err != nil {
			return nil, err
		}
	} else {
		// zero-quantity line against a product that has never been stocked
		if err := tx.Create(&StockSummary{BusinessId: businessId, ProductId: productId, CurrentQty: newQty}).Error; err != nil {
			return nil, err
		}
	}

	invoiceId := ref.InvoiceId
	movement := StockMovement{
		BusinessId:      businessId,
		ProductId:       productId,
		ChangeType:      StockChangeTypeOut,
		QuantityChanged: qty,
		OldStock:        oldQty,
		NewStock:        newQty,
		Reason:          ref.reason(),
		ReferenceId:     &invoiceId,
		UpdatedBy:       ref.Actor,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	return &StockChange{ProductId: productId, OldQty: oldQty, NewQty: newQty}, nil
}

// ReceiveStock adds qty of productId, creating the stock row when the product has none.
func ReceiveStock(tx *gorm.DB, businessId string, productId int, qty decimal.Decimal, reason string, actor string) (*StockChange, error) {
	if !qty.IsPositive() {
		return nil, utils.NewValidationError("quantity must be greater than zero", map[string]string{"quantity": qty.String()})
	}

	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&StockSummary{BusinessId: businessId, ProductId: productId, CurrentQty: decimal.Zero}).Error
	if err != nil {
		return nil, err
	}
	summary, err := lockStockSummary(tx, businessId, productId)
	if err != nil {
		return nil, err
	}

	oldQty := summary.CurrentQty
	newQty := oldQty.Add(qty)
	if err := tx.Model(summary).Update("current_qty", newQty).Error; err != nil {
		return nil, err
	}

	movement := StockMovement{
		BusinessId:      businessId,
		ProductId:       productId,
		ChangeType:      StockChangeTypeIn,
		QuantityChanged: qty,
		OldStock:        oldQty,
		NewStock:        newQty,
		Reason:          reason,
		UpdatedBy:       actor,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &StockChange{ProductId: productId, OldQty: oldQty, NewQty: newQty}, nil
}

// GetStockQty reads the current on-hand quantity without locking. Missing rows read as zero.
func GetStockQty(db *gorm.DB, businessId string, productId int) (decimal.Decimal, error) {
	var summary StockSummary
	err := db.Where("business_id = ? AND product_id = ?", businessId, productId).Take(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return summary.CurrentQty, nil
}
