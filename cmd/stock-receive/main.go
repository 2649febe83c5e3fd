package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type receipt struct {
	ProductId int
	Qty       decimal.Decimal
}

type receiptRow struct {
	ProductId string `csv:"product_id"`
	Qty       string `csv:"qty"`
}

// readReceipts parses a CSV with a "product_id,qty" header row.
func readReceipts(r io.Reader) ([]receipt, error) {
	var rows []*receiptRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}

	out := make([]receipt, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		productId, err := strconv.Atoi(strings.TrimSpace(row.ProductId))
		if err != nil || productId <= 0 {
			return nil, fmt.Errorf("line %d: invalid product id %q", line, row.ProductId)
		}
		qty, err := utils.ParseDecimal(row.Qty)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid qty %q", line, row.Qty)
		}
		out = append(out, receipt{ProductId: productId, Qty: qty})
	}
	return out, nil
}

func main() {
	businessId := flag.String("business-id", "", "Business ID receiving the stock (required)")
	productId := flag.Int("product-id", 0, "Product ID (single receipt)")
	qty := flag.String("qty", "", "Quantity received (single receipt)")
	csvPath := flag.String("csv", "", "CSV file with a product_id,qty header (instead of --product-id/--qty)")
	reason := flag.String("reason", "Opening stock", "Reason recorded on the IN movements")
	actor := flag.String("actor", "stock-receive", "Actor recorded on the IN movements")
	dryRun := flag.Bool("dry-run", false, "Print actions without writing")
	flag.Parse()

	logger := config.NewLogger()
	bid := strings.TrimSpace(*businessId)
	if bid == "" {
		logger.Fatal("--business-id is required")
	}

	var receipts []receipt
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			logger.Fatal(err.Error())
		}
		receipts, err = readReceipts(f)
		f.Close()
		if err != nil {
			logger.Fatal(err.Error())
		}
	} else {
		q, err := utils.ParseDecimal(*qty)
		if err != nil || *productId <= 0 {
			logger.Fatal("--product-id and --qty are required when --csv is not given")
		}
		receipts = []receipt{{ProductId: *productId, Qty: q}}
	}

	if *dryRun {
		for _, r := range receipts {
			logger.WithFields(logrus.Fields{"business_id": bid, "product_id": r.ProductId, "qty": r.Qty.String()}).Info("dry-run: receive stock")
		}
		return
	}

	db := config.ConnectDatabaseWithRetry()
	ctx := utils.SetBusinessIdInContext(context.Background(), bid)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range receipts {
			change, err := models.ReceiveStock(tx, bid, r.ProductId, r.Qty, *reason, *actor)
			if err != nil {
				return fmt.Errorf("product %d: %w", r.ProductId, err)
			}
			logger.WithFields(logrus.Fields{
				"business_id": bid,
				"product_id":  r.ProductId,
				"old_qty":     change.OldQty.String(),
				"new_qty":     change.NewQty.String(),
			}).Info("stock received")
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "StockReceive", "main", "receive stock", bid, err)
		os.Exit(1)
	}
}
