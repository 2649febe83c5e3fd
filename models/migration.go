package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Customer{},
		&ProductCategory{}, &Product{},
		&User{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&StockSummary{}, &StockMovement{},
		&NotificationLog{},
	)
}
