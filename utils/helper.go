package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

const DateLayout = "2006-01-02"

// NormalizePhoneNumber formats a parseable number as E.164 and returns anything else unchanged.
func NormalizePhoneNumber(phoneNumber string) string {
	raw := strings.TrimSpace(phoneNumber)
	if raw == "" {
		return ""
	}
	p, err := libphonenumber.Parse(raw, CountryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return raw
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// ConvertToDate strips the time of day of t as seen in loc.
// The result is midnight UTC of that calendar day so it compares cleanly with DATE columns.
func ConvertToDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the calendar day at midnight UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date string")
	}
	if d, err := time.Parse(DateLayout, value); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeFileName replaces every character outside [A-Za-z0-9_-] with an underscore.
func SafeFileName(s string) string {
	return unsafeFileChars.ReplaceAllString(s, "_")
}

var ErrLockNotObtained = errors.New("could not obtain lock for businessID")

// BusinessLock obtains "<lockType>:<businessId>" and returns a release func.
func BusinessLock(ctx context.Context, locker *redislock.Client, businessId string, lockType string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, businessId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	} else if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
