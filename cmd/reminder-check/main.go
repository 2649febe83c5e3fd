package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/mmdatafocus/invoice_backend/workflow"
)

// reminder-check prints the reminder buckets of one business, or of every business,
// as JSON. With --dispatch it also publishes the notices.
func main() {
	businessId := flag.String("business-id", "", "Business ID (optional; default = all)")
	dispatch := flag.Bool("dispatch", false, "Publish reminder and overdue notices")
	flag.Parse()

	logger := config.NewLogger()
	db := config.ConnectDatabaseWithRetry()
	ctx := context.Background()
	store := workflow.NewGormReminderStore(db)

	bid := strings.TrimSpace(*businessId)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if !*dispatch {
		if bid == "" {
			ctx = utils.SetSkipTenantScopeInContext(ctx, true)
		} else {
			ctx = utils.SetBusinessIdInContext(ctx, bid)
		}
		rows, err := store.ListReminderCandidates(ctx, bid)
		if err != nil {
			logger.Fatal(err.Error())
		}
		service := models.NewInvoiceService(db, logger)
		if err := enc.Encode(models.ClassifyReminders(service.Today(), rows)); err != nil {
			logger.Fatal(err.Error())
		}
		return
	}

	client, err := config.NewPubSubClient(ctx)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer client.Close()
	publisher, err := config.NewPubSubPublisher(ctx, client)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer publisher.Stop()
	redisClients, err := config.ConnectRedisWithRetry(ctx)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer redisClients.Close()

	dispatcher := workflow.NewReminderDispatcher(store, publisher, redisClients.Locker, logger)
	var results []*workflow.DispatchResult
	if bid == "" {
		results, err = dispatcher.DispatchAll(ctx)
	} else {
		var res *workflow.DispatchResult
		res, err = dispatcher.DispatchBusiness(utils.SetBusinessIdInContext(ctx, bid), bid)
		if res != nil {
			results = append(results, res)
		}
	}
	if err != nil {
		logger.Fatal(err.Error())
	}
	if err := enc.Encode(results); err != nil {
		logger.Fatal(err.Error())
	}
}
