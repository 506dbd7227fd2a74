package domain

import (
	"testing"
	"time"
)

func TestAbbreviate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want string
	}{
		{"Sunny Signs", "SUN"},
		{"A1 Yard Rentals", "AYA"},
		{"bo", "BOX"},
		{"", "XXX"},
		{"42", "XXX"},
		{"éclair signs", "CLA"},
	}

	for _, tc := range cases {
		if got := Abbreviate(tc.name); got != tc.want {
			t.Fatalf("Abbreviate(%q): expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestHoldExpiredAtInstant(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hold := Hold{ExpiresAt: now.Add(15 * time.Minute), Active: true}

	if hold.Expired(now) {
		t.Fatalf("fresh hold should not be expired")
	}
	if !hold.Expired(now.Add(15 * time.Minute)) {
		t.Fatalf("hold should expire exactly at ExpiresAt")
	}
	if !hold.Expired(now.Add(time.Hour)) {
		t.Fatalf("lapsed hold should be expired")
	}
}

func TestValidCondition(t *testing.T) {
	t.Parallel()

	for _, c := range []SignCondition{ConditionGood, ConditionDamaged, ConditionMissing} {
		if !ValidCondition(c) {
			t.Fatalf("%s should be valid", c)
		}
	}
	for _, c := range []SignCondition{"", "lost", "GOOD"} {
		if ValidCondition(c) {
			t.Fatalf("%q should be invalid", c)
		}
	}
}
