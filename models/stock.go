package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMovement is the append-only audit trail of every change to StockSummary.CurrentQty.
type StockMovement struct {
	ID              int             `gorm:"primary_key" json:"movement_id"`
	BusinessId      string          `gorm:"size:64;index;not null" json:"business_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	ChangeType      StockChangeType `gorm:"type:enum('IN','OUT');not null" json:"change_type"`
	QuantityChanged decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_changed"`
	OldStock        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"old_stock"`
	NewStock        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"new_stock"`
	Reason          string          `gorm:"size:255" json:"reason"`
	ReferenceId     *int            `gorm:"index" json:"reference_id"`
	UpdatedBy       string          `gorm:"size:64" json:"updated_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
