package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()
	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Ticker(t *testing.T) {
	ticker := RealClock{}.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClock_AdvanceFiresDueTickers(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewMockClock(start)
	ticker := c.NewTicker(10 * time.Millisecond)
	if got := c.Tickers(); got != 1 {
		t.Fatalf("Tickers() = %d, want 1", got)
	}

	c.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(5 * time.Millisecond)
	select {
	case got := <-ticker.C():
		if want := start.Add(10 * time.Millisecond); !got.Equal(want) {
			t.Errorf("tick = %v, want %v", got, want)
		}
	default:
		t.Fatal("ticker did not fire")
	}
	if got := c.Now(); !got.Equal(start.Add(10 * time.Millisecond)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestMockClock_DropsTicksForSlowReader(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Millisecond)
	c.Advance(time.Millisecond)
	c.Advance(time.Millisecond)

	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("second tick should have been dropped")
	default:
	}
}

func TestMockTicker_Stop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Millisecond)
	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
