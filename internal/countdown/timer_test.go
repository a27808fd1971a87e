package countdown

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestExpiryFiresExactlyOnce(t *testing.T) {
	var fired int32
	done := make(chan struct{})

	timer := New(1, func() {
		atomic.AddInt32(&fired, 1)
		close(done)
	}, WithInterval(time.Millisecond))

	timer.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never expired")
	}

	// Give a stray second callback time to show up.
	time.Sleep(50 * time.Millisecond)

	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("callback fired %d times, want exactly 1", n)
	}
	if timer.State() != StateExpired {
		t.Errorf("state = %s, want %s", timer.State(), StateExpired)
	}
	if timer.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", timer.Remaining())
	}
	if timer.Display() != "00:00" {
		t.Errorf("display = %q, want 00:00", timer.Display())
	}
	if timer.Progress() != 100 {
		t.Errorf("progress = %v, want 100", timer.Progress())
	}
}

func TestStartWhileRunningDoesNotStack(t *testing.T) {
	timer := New(1, nil, WithInterval(10*time.Millisecond))
	timer.Start()
	timer.Start()
	timer.Start()

	time.Sleep(105 * time.Millisecond)
	timer.Stop()

	// One ticker decrements roughly 10 times in 105ms. Stacked tickers
	// would have burned at least twice that.
	if got := timer.Remaining(); got < 60-15 {
		t.Errorf("remaining = %d, stacked tickers suspected", got)
	}
}

func TestStopPreservesRemainingAndResumes(t *testing.T) {
	timer := New(5, nil, WithInterval(time.Hour))
	timer.Start()
	timer.Stop()

	if timer.State() != StateStopped {
		t.Fatalf("state = %s, want %s", timer.State(), StateStopped)
	}
	if timer.Remaining() != 300 {
		t.Errorf("remaining = %d, want 300", timer.Remaining())
	}

	timer.Start()
	if timer.State() != StateRunning {
		t.Errorf("state after resume = %s, want %s", timer.State(), StateRunning)
	}
	timer.Stop()
}

func TestStopWhenNotRunningIsNoOp(t *testing.T) {
	timer := New(5, nil)
	timer.Stop()
	if timer.State() != StateIdle {
		t.Errorf("state = %s, want %s", timer.State(), StateIdle)
	}
}

func TestZeroDuration(t *testing.T) {
	timer := New(0, func() {
		t.Error("zero-duration timer must not fire")
	})

	timer.Start()
	if timer.State() != StateIdle {
		t.Errorf("state = %s, want %s (Start is a no-op with nothing to count)", timer.State(), StateIdle)
	}
	if timer.Progress() != 0 {
		t.Errorf("progress = %v, want 0", timer.Progress())
	}
	if timer.Display() != "00:00" {
		t.Errorf("display = %q, want 00:00", timer.Display())
	}
}

func TestDisplayFormat(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{1, "01:00"},
		{9, "09:00"},
		{45, "45:00"},
	}
	for _, tc := range cases {
		timer := New(tc.minutes, nil)
		if got := timer.Display(); got != tc.want {
			t.Errorf("New(%d).Display() = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestProgressStartsAtZero(t *testing.T) {
	timer := New(10, nil)
	if got := timer.Progress(); got != 0 {
		t.Errorf("progress before start = %v, want 0", got)
	}
}
