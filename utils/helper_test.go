package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSafeFileName(t *testing.T) {
	cases := map[string]string{
		"INV-001":     "INV-001",
		"INV/2024/07": "INV_2024_07",
		"a b.c#d_e":   "a_b_c_d_e",
		"../../etc":   "______etc",
	}
	for in, want := range cases {
		if got := SafeFileName(in); got != want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConvertToDate(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2024, 1, 9, 19, 0, 0, 0, time.UTC)
	got := ConvertToDate(in, loc)
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("ConvertToDate = %v, want %v", got, want)
	}
	if got := ConvertToDate(in, nil); !got.Equal(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ConvertToDate(nil loc) = %v", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("10/01/2024"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
	d, err := ParseDate("2024-01-10T23:30:00+05:30")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if FormatDate(d) != "2024-01-10" {
		t.Fatalf("date = %s", FormatDate(d))
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	if got := NormalizePhoneNumber("98765 43210"); got != "+919876543210" {
		t.Fatalf("NormalizePhoneNumber = %q", got)
	}
	if got := NormalizePhoneNumber(" call me "); got != "call me" {
		t.Fatalf("unparseable number changed: %q", got)
	}
	if got := NormalizePhoneNumber(""); got != "" {
		t.Fatalf("blank = %q", got)
	}
}

func TestLocalStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	store := &LocalStore{Dir: dir, URLPrefix: "/invoices/"}
	url, err := store.Put(context.Background(), "biz-1/invoice-INV_1-5.xlsx", []byte("data"), "application/octet-stream")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/invoices/biz-1/invoice-INV_1-5.xlsx" {
		t.Fatalf("url = %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, "biz-1", "invoice-INV_1-5.xlsx"))
	if err != nil || string(b) != "data" {
		t.Fatalf("file = %q, %v", b, err)
	}
}

func TestLocalStorePath_RejectsEscapingNames(t *testing.T) {
	store := &LocalStore{Dir: t.TempDir()}
	for _, name := range []string{"", "..", "../x.xlsx", "biz/../../x.xlsx", "/etc/passwd"} {
		if _, err := store.Path(name); err == nil {
			t.Fatalf("Path(%q) accepted", name)
		}
	}
	if _, err := store.Put(context.Background(), "../x.xlsx", []byte("data"), ""); err == nil {
		t.Fatalf("Put outside Dir accepted")
	}
}

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	if got := BuildObjectAccessURL("bkt", "invoices/a.xlsx"); got != "https://storage.googleapis.com/bkt/invoices/a.xlsx" {
		t.Fatalf("url = %q", got)
	}
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/")
	if got := BuildObjectAccessURL("bkt", "invoices/a.xlsx"); got != "https://cdn.example.com/invoices/a.xlsx" {
		t.Fatalf("url = %q", got)
	}
}
