package storage

import (
	"strconv"
	"testing"
	"time"
)

func TestClockIDGenerator_StrictlyIncreasing(t *testing.T) {
	frozen := time.UnixMilli(1700000000000)
	gen := &clockIDGenerator{now: func() time.Time { return frozen }}

	prev := int64(0)
	for i := 0; i < 100; i++ {
		n, err := strconv.ParseInt(gen.NewID(), 10, 64)
		if err != nil {
			t.Fatalf("id is not numeric: %v", err)
		}
		if n <= prev {
			t.Fatalf("id %d not greater than %d", n, prev)
		}
		prev = n
	}
}

func TestClockIDGenerator_ClockStepsBack(t *testing.T) {
	now := time.UnixMilli(2000)
	gen := &clockIDGenerator{now: func() time.Time { return now }}
	first := gen.NewID()
	now = time.UnixMilli(1000)
	if second := gen.NewID(); second != "2001" || first != "2000" {
		t.Fatalf("unexpected ids %s %s", first, second)
	}
}

func TestIDFromTime_BumpsOnCollision(t *testing.T) {
	used := map[string]bool{"5": true, "6": true}
	if got := idFromTime(time.UnixMilli(5), used); got != "7" {
		t.Fatalf("expected 7, got %s", got)
	}
	if !used["7"] {
		t.Fatal("chosen id must be recorded")
	}
}
