package main

import (
	"testing"
	"time"
)

func TestDayFromString(t *testing.T) {
	day, err := dayFromString("2026-08-23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := day.Format("2006-01-02"); got != "2026-08-23" {
		t.Fatalf("expected 2026-08-23, got %s", got)
	}

	day, err = dayFromString("")
	if err != nil {
		t.Fatalf("unexpected error for empty date: %v", err)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(today) {
		t.Fatalf("empty date should default to today, got %s", day)
	}

	if _, err := dayFromString("23-08-2026"); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := dayFromString("not-a-date"); err == nil {
		t.Fatal("expected error for garbage date")
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example.com , ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected result: %#v", got)
	}
	if splitAndTrim("   ") != nil {
		t.Fatal("blank csv should return nil")
	}
}

func TestSessionTokenLifespan(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "")
	if got := sessionTokenLifespan(); got != 24*time.Hour {
		t.Fatalf("expected 24h default, got %s", got)
	}

	t.Setenv("TOKEN_HOUR_LIFESPAN", "8")
	if got := sessionTokenLifespan(); got != 8*time.Hour {
		t.Fatalf("expected 8h, got %s", got)
	}

	t.Setenv("TOKEN_HOUR_LIFESPAN", "-3")
	if got := sessionTokenLifespan(); got != 24*time.Hour {
		t.Fatalf("negative lifespan should fall back to 24h, got %s", got)
	}
}
