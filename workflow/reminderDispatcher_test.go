package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/invoice_backend/config"
	"github.com/mmdatafocus/invoice_backend/models"
	"github.com/mmdatafocus/invoice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fakeReminderStore keeps candidates per business and claims in memory,
// with the same (invoice, bucket, day) uniqueness as notification_logs.
type fakeReminderStore struct {
	mu         sync.Mutex
	candidates map[string][]models.ReminderInvoice
	claims     map[string]*models.NotificationLog
	messageIds map[string]string
	nextId     int
	skipScope  []bool
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{
		candidates: map[string][]models.ReminderInvoice{},
		claims:     map[string]*models.NotificationLog{},
		messageIds: map[string]string{},
	}
}

func claimKey(invoiceId int, bucket models.ReminderBucket, day time.Time) string {
	return fmt.Sprintf("%d|%s|%s", invoiceId, bucket, utils.FormatDate(day))
}

func (s *fakeReminderStore) ListReminderBusinesses(ctx context.Context) ([]string, error) {
	skip, _ := utils.GetSkipTenantScopeFromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipScope = append(s.skipScope, skip)
	ids := []string{}
	for id := range s.candidates {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeReminderStore) ListReminderCandidates(ctx context.Context, businessId string) ([]models.ReminderInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ReminderInvoice(nil), s.candidates[businessId]...), nil
}

func (s *fakeReminderStore) ClaimNotification(ctx context.Context, businessId string, invoiceId int, bucket models.ReminderBucket, day time.Time) (*models.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claimKey(invoiceId, bucket, day)
	if _, ok := s.claims[key]; ok {
		return nil, models.ErrAlreadyNotified
	}
	s.nextId++
	entry := &models.NotificationLog{ID: s.nextId, BusinessId: businessId, InvoiceId: invoiceId, Bucket: bucket, NotifiedOn: day}
	s.claims[key] = entry
	return entry, nil
}

func (s *fakeReminderStore) RecordNotificationMessage(ctx context.Context, entry *models.NotificationLog, messageId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageIds[claimKey(entry.InvoiceId, entry.Bucket, entry.NotifiedOn)] = messageId
	return nil
}

func (s *fakeReminderStore) ReleaseNotification(ctx context.Context, entry *models.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, claimKey(entry.InvoiceId, entry.Bucket, entry.NotifiedOn))
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []config.NotificationMessage
	failFor  map[int]bool
}

func (p *fakePublisher) Publish(ctx context.Context, msg config.NotificationMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.ReferenceId] {
		return "", errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakePublisher) published() []config.NotificationMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]config.NotificationMessage(nil), p.messages...)
}

func strPtr(s string) *string { return &s }

func candidate(id int, businessId, due, email string) models.ReminderInvoice {
	d, _ := utils.ParseDate(due)
	inv := models.ReminderInvoice{
		InvoiceId:     id,
		BusinessId:    businessId,
		InvoiceNumber: fmt.Sprintf("INV-%d", id),
		CustomerName:  strPtr("Customer"),
		TotalAmount:   decimal.NewFromInt(1000),
		AdvanceAmount: decimal.NewFromInt(250),
		DueDate:       d,
	}
	if email != "" {
		inv.Email = strPtr(email)
	}
	return inv
}

func newTestDispatcher(store ReminderStore, pub NotificationPublisher) *ReminderDispatcher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &ReminderDispatcher{
		Store:        store,
		Publisher:    pub,
		Logger:       logger,
		DispatcherID: "test",
		PollInterval: time.Hour,
		DedupEnabled: true,
		Location:     time.UTC,
		Now:          func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func TestDispatchBusiness_PublishesPerBucketAndSkipsMissingEmail(t *testing.T) {
	store := newFakeReminderStore()
	store.candidates["biz-1"] = []models.ReminderInvoice{
		candidate(1, "biz-1", "2024-01-12", "a@example.com"), // due soon
		candidate(2, "biz-1", "2024-01-08", "b@example.com"), // overdue
		candidate(3, "biz-1", "2024-01-12", ""),              // due soon, no email
		candidate(4, "biz-1", "2024-01-11", "d@example.com"), // neither
	}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, pub)

	res, err := d.DispatchBusiness(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("DispatchBusiness: %v", err)
	}
	if res.Sent != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Message() != "2 email(s) sent." {
		t.Fatalf("message = %q", res.Message())
	}
	if len(res.Buckets.Reminders) != 2 || len(res.Buckets.Overdues) != 1 {
		t.Fatalf("buckets = %+v", res.Buckets)
	}
	if len(res.Notified.Reminders) != 1 || res.Notified.Reminders[0].InvoiceId != 1 ||
		len(res.Notified.Overdues) != 1 || res.Notified.Overdues[0].InvoiceId != 2 {
		t.Fatalf("notified = %+v", res.Notified)
	}

	msgs := pub.published()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].EventType != EventInvoiceReminder || msgs[0].ReferenceId != 1 {
		t.Fatalf("first message = %+v", msgs[0])
	}
	if msgs[1].EventType != EventInvoiceOverdue || msgs[1].ReferenceId != 2 {
		t.Fatalf("second message = %+v", msgs[1])
	}
	var payload ReminderPayload
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Email != "a@example.com" || payload.DueDate != "2024-01-12" || !payload.BalanceDue.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("payload = %+v", payload)
	}
	if store.messageIds[claimKey(1, models.ReminderBucketDueSoon, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))] != "msg-1" {
		t.Fatalf("message id not recorded: %v", store.messageIds)
	}
}

func TestDispatchBusiness_SecondRunSameDaySendsNothing(t *testing.T) {
	store := newFakeReminderStore()
	store.candidates["biz-1"] = []models.ReminderInvoice{
		candidate(1, "biz-1", "2024-01-12", "a@example.com"),
		candidate(2, "biz-1", "2024-01-01", "b@example.com"),
	}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, pub)

	if _, err := d.DispatchBusiness(context.Background(), "biz-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := d.DispatchBusiness(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Sent != 0 || res.AlreadyNotified != 2 {
		t.Fatalf("second run = %+v", res)
	}
	if len(res.Notified.Reminders) != 0 || len(res.Notified.Overdues) != 0 {
		t.Fatalf("second run notified = %+v", res.Notified)
	}
	if got := len(pub.published()); got != 2 {
		t.Fatalf("published %d messages across two runs, want 2", got)
	}

	// The next day the overdue invoice is notified again.
	d.Now = func() time.Time { return time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC) }
	res, err = d.DispatchBusiness(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("next day: %v", err)
	}
	if res.Sent != 1 || len(res.Buckets.Overdues) != 1 {
		t.Fatalf("next day = %+v", res)
	}
}

func TestDispatchBusiness_DedupDisabledResends(t *testing.T) {
	store := newFakeReminderStore()
	store.candidates["biz-1"] = []models.ReminderInvoice{candidate(1, "biz-1", "2024-01-01", "a@example.com")}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, pub)
	d.DedupEnabled = false

	for i := 0; i < 2; i++ {
		if _, err := d.DispatchBusiness(context.Background(), "biz-1"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := len(pub.published()); got != 2 {
		t.Fatalf("published %d, want 2", got)
	}
	if len(store.claims) != 0 {
		t.Fatalf("claims written with dedup disabled: %d", len(store.claims))
	}
}

func TestDispatchBusiness_PublishFailureReleasesClaim(t *testing.T) {
	store := newFakeReminderStore()
	store.candidates["biz-1"] = []models.ReminderInvoice{candidate(5, "biz-1", "2024-01-01", "a@example.com")}
	pub := &fakePublisher{failFor: map[int]bool{5: true}}
	d := newTestDispatcher(store, pub)

	res, err := d.DispatchBusiness(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("DispatchBusiness: %v", err)
	}
	if res.Failed != 1 || res.Sent != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(store.claims) != 0 {
		t.Fatalf("claim kept after failed publish")
	}

	pub.failFor = nil
	res, err = d.DispatchBusiness(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("retry result = %+v", res)
	}
}

func TestDispatchAll_SweepsEveryBusinessWithoutTenantScope(t *testing.T) {
	store := newFakeReminderStore()
	store.candidates["biz-1"] = []models.ReminderInvoice{candidate(1, "biz-1", "2024-01-01", "a@example.com")}
	store.candidates["biz-2"] = []models.ReminderInvoice{candidate(2, "biz-2", "2024-01-12", "b@example.com")}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, pub)

	results, err := d.DispatchAll(context.Background())
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if len(store.skipScope) != 1 || !store.skipScope[0] {
		t.Fatalf("business listing not tenant-unscoped: %v", store.skipScope)
	}
	seen := map[string]bool{}
	for _, m := range pub.published() {
		seen[m.BusinessId] = true
	}
	if !seen["biz-1"] || !seen["biz-2"] {
		t.Fatalf("published businesses = %v", seen)
	}
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	store := newFakeReminderStore()
	d := newTestDispatcher(store, &fakePublisher{})
	d.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
