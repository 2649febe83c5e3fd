package models

type PaymentStatus string

const (
	PaymentStatusFullPayment PaymentStatus = "Full Payment"
	PaymentStatusAdvance     PaymentStatus = "Advance"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusFullPayment, PaymentStatusAdvance:
		return true
	}
	return false
}

type CompletionStatus string

const (
	CompletionStatusPending   CompletionStatus = "Pending"
	CompletionStatusCompleted CompletionStatus = "Completed"
)

type StockChangeType string

const (
	StockChangeTypeIn  StockChangeType = "IN"
	StockChangeTypeOut StockChangeType = "OUT"
)

type ReminderBucket string

const (
	ReminderBucketDueSoon ReminderBucket = "due_soon"
	ReminderBucketOverdue ReminderBucket = "overdue"
)

func (b ReminderBucket) IsValid() bool {
	return b == ReminderBucketDueSoon || b == ReminderBucketOverdue
}

const (
	DefaultPaymentType  = "Cash"
	DefaultDiscountType = "%"
	DefaultCreatedBy    = 1
)
