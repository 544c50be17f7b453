// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowDefaultsToUTC ensures a nil location yields UTC timestamps.
func TestClockNowDefaultsToUTC(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockNowUsesLocation checks the configured zone is applied.
func TestClockNowUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("AEST", 10*60*60)
	clk := New(loc)
	got := clk.Now()
	if got.Location() != loc {
		t.Fatalf("expected %v location, got %v", loc, got.Location())
	}
	if _, offset := got.Zone(); offset != 10*60*60 {
		t.Fatalf("expected +10h offset, got %d", offset)
	}
	if clk.Location() != loc {
		t.Fatal("Location() should return the configured zone")
	}
}

// TestClockNowMonotonic checks successive timestamps are non-decreasing.
func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New(time.UTC)
	first := clk.Now()
	second := clk.Now()
	if second.Before(first) {
		t.Fatalf("expected second call %v to be >= first %v", second, first)
	}
}
