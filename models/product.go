package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductCategory struct {
	ID         int       `gorm:"primary_key" json:"category_id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"category_name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Product is the catalog entry referenced by invoice lines. On-hand quantity lives in StockSummary.
type Product struct {
	ID            int             `gorm:"primary_key" json:"product_id"`
	BusinessId    string          `gorm:"size:64;index;not null" json:"business_id"`
	CategoryId    int             `gorm:"index;not null;default:0" json:"category_id"`
	Name          string          `gorm:"size:255;not null" json:"product_name"`
	Description   string          `gorm:"type:text" json:"description"`
	HsnCode       string          `gorm:"size:20" json:"hsn_code"`
	ImageUrl      string          `gorm:"size:500" json:"image_url"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	GstPercentage decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"gst"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
