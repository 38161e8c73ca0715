package gate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/warroomlabs/warroom/internal/gate"
)

func TestResolveUnblocksWait(t *testing.T) {
	g := gate.New(gate.Granted)
	if err := g.Open(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Resolve(gate.Granted, "alice")
	}()

	out := g.Wait()
	if out.Decision != gate.Granted {
		t.Errorf("decision: got %q want granted", out.Decision)
	}
	if out.TimedOut {
		t.Error("explicit resolve should not be marked timed out")
	}
	if out.By != "alice" {
		t.Errorf("by: got %q want alice", out.By)
	}
	if st := g.State(); st != gate.StateGranted {
		t.Errorf("state: got %q want granted", st)
	}
}

func TestWaitReturnsWithinTimeout(t *testing.T) {
	g := gate.New(gate.Granted)
	timeout := 50 * time.Millisecond
	if err := g.Open(timeout); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	out := g.Wait()
	elapsed := time.Since(start)

	if !out.TimedOut {
		t.Error("expected timed-out outcome")
	}
	if out.Decision != gate.Granted {
		t.Errorf("default decision: got %q want granted", out.Decision)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("Wait took %v, want <= timeout plus slack", elapsed)
	}
	if st := g.State(); st != gate.StateTimedOut {
		t.Errorf("state: got %q want timed_out", st)
	}
}

func TestTimeoutDefaultIsConfigurable(t *testing.T) {
	g := gate.New(gate.Rejected)
	if err := g.Open(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	out := g.Wait()
	if out.Decision != gate.Rejected || !out.TimedOut {
		t.Errorf("got %+v, want timed-out rejection", out)
	}
}

func TestResolveIsExactlyOnce(t *testing.T) {
	g := gate.New(gate.Granted)
	g.Open(5 * time.Second)

	out1, settled := g.Resolve(gate.Rejected, "alice")
	if !settled {
		t.Fatal("first resolve should settle")
	}
	out2, settled := g.Resolve(gate.Granted, "bob")
	if settled {
		t.Error("second resolve must be a no-op")
	}
	if out2.Decision != out1.Decision || out2.By != "alice" {
		t.Errorf("second resolve changed outcome: %+v", out2)
	}
}

func TestResolveRacingExpiry(t *testing.T) {
	// Arm with a tiny timeout and resolve concurrently; exactly one writer
	// may win, and Wait must observe a single consistent outcome.
	for i := 0; i < 50; i++ {
		g := gate.New(gate.Granted)
		g.Open(time.Millisecond)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Resolve(gate.Rejected, "alice")
		}()

		out := g.Wait()
		wg.Wait()

		switch {
		case out.TimedOut && out.Decision == gate.Granted:
		case !out.TimedOut && out.Decision == gate.Rejected && out.By == "alice":
		default:
			t.Fatalf("iteration %d: torn outcome %+v", i, out)
		}
		if again := g.Wait(); again != out {
			t.Fatalf("iteration %d: outcome changed after settle: %+v then %+v", i, out, again)
		}
	}
}

func TestOpenWhilePendingIsMisuse(t *testing.T) {
	g := gate.New(gate.Granted)
	g.Open(time.Second)
	if err := g.Open(time.Second); err != gate.ErrPending {
		t.Errorf("got %v, want ErrPending", err)
	}
}

func TestResetPendingFails(t *testing.T) {
	g := gate.New(gate.Granted)
	g.Open(time.Second)
	if err := g.Reset(); err != gate.ErrPending {
		t.Errorf("got %v, want ErrPending", err)
	}
}

func TestStaleTimerCannotSettleReopenedGate(t *testing.T) {
	g := gate.New(gate.Granted)
	g.Open(10 * time.Millisecond)
	g.Resolve(gate.Rejected, "alice")
	if err := g.Reset(); err != nil {
		t.Fatal(err)
	}

	// Re-arm with a long window, then let the first arming's timer fire.
	if err := g.Open(time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if st := g.State(); st != gate.StatePending {
		t.Fatalf("stale timer settled re-armed gate: state %q", st)
	}
	g.Resolve(gate.Granted, "bob")
}

func TestStatusSnapshot(t *testing.T) {
	g := gate.New(gate.Granted)

	pending, granted := g.Status()
	if pending || granted {
		t.Errorf("idle gate: pending=%v granted=%v", pending, granted)
	}

	g.Open(time.Second)
	if pending, _ := g.Status(); !pending {
		t.Error("open gate should be pending")
	}

	g.Resolve(gate.Granted, "alice")
	pending, granted = g.Status()
	if pending || !granted {
		t.Errorf("granted gate: pending=%v granted=%v", pending, granted)
	}
}

func TestWaitOnIdleGateReturnsImmediately(t *testing.T) {
	g := gate.New(gate.Granted)
	done := make(chan gate.Outcome, 1)
	go func() { done <- g.Wait() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on idle gate blocked")
	}
}
