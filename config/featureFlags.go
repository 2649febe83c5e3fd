package config

import (
	"log"
	"os"
	"strings"
	"time"
)

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// ReminderDispatchEnabled starts the background reminder loop in the server.
//
// Set via env:
// - REMINDER_DISPATCH_ENABLED=true
func ReminderDispatchEnabled() bool {
	return boolFromEnv("REMINDER_DISPATCH_ENABLED", false)
}

// ReminderDedupEnabled records each dispatched reminder in notification_logs so that a second
// run on the same day skips it. Defaults to on.
//
// Set via env:
// - REMINDER_DEDUP_ENABLED=false
func ReminderDedupEnabled() bool {
	return boolFromEnv("REMINDER_DEDUP_ENABLED", true)
}

// ReminderPollInterval is the background loop period (REMINDER_POLL_INTERVAL_MINUTES, default 60).
func ReminderPollInterval() time.Duration {
	minutes := intFromEnv("REMINDER_POLL_INTERVAL_MINUTES", 60)
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// BusinessLocation is the zone used to decide what "today" is (BUSINESS_TIMEZONE, default UTC).
func BusinessLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("BUSINESS_TIMEZONE"))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("invalid BUSINESS_TIMEZONE %q: %v; using UTC", name, err)
		return time.UTC
	}
	return loc
}

// SkipMigrations disables AutoMigrate on server start (SKIP_MIGRATIONS=true).
func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS", false)
}
