package clock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	c := Fake(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	c.Advance(5 * time.Second)
	if got, want := c.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockTimerFiresOnDeadline(t *testing.T) {
	c := Fake(epoch)
	timer := c.NewTimer(3 * time.Second)

	c.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("timer fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-timer.C:
		if want := epoch.Add(3 * time.Second); !got.Equal(want) {
			t.Errorf("fired at %v, want %v", got, want)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", c.PendingCount())
	}
}

func TestFakeClockTimerNonPositive(t *testing.T) {
	c := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-c.NewTimer(d).C:
		default:
			t.Errorf("NewTimer(%v) should fire immediately", d)
		}
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", c.PendingCount())
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	c := Fake(epoch)
	timer := c.NewTimer(time.Second)
	if !timer.Stop() {
		t.Fatal("Stop() = false on pending timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Stop, want 0", c.PendingCount())
	}
	c.Advance(time.Minute)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeClockAfterFunc(t *testing.T) {
	c := Fake(epoch)
	var calls atomic.Int32
	c.AfterFunc(2*time.Second, func() { calls.Add(1) })

	c.Advance(time.Second)
	if calls.Load() != 0 {
		t.Fatal("AfterFunc ran early")
	}
	c.Advance(time.Second)
	if calls.Load() != 1 {
		t.Fatalf("AfterFunc calls = %d, want 1", calls.Load())
	}
	c.Advance(time.Hour)
	if calls.Load() != 1 {
		t.Fatalf("AfterFunc calls = %d after further Advance, want 1", calls.Load())
	}
}

func TestSleep(t *testing.T) {
	c := Fake(epoch)
	done := make(chan error, 1)
	go func() { done <- Sleep(context.Background(), c, 10*time.Second) }()

	c.WaitForTimers(1)
	c.Advance(10 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Sleep() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestSleep_Cancelled(t *testing.T) {
	c := Fake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Sleep(ctx, c, time.Hour) }()

	c.WaitForTimers(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Sleep() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after cancel")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want timer released", c.PendingCount())
	}
}

func TestUntil_PastDeadline(t *testing.T) {
	c := Fake(epoch)
	if err := Until(context.Background(), c, epoch.Add(-time.Minute)); err != nil {
		t.Fatalf("Until(past) = %v, want nil", err)
	}
}
