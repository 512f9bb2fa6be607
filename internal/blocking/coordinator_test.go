package blocking

import (
	"testing"
	"time"

	"github.com/example/redisd/internal/values"
)

func TestSignalWakesWaiter(t *testing.T) {
	c := NewCoordinator()
	w := c.Wait(1, 0, []string{"q"}, values.KindList, time.Time{})

	remaining := 1
	c.SignalKeyReady(0, "q", values.KindList, func() int { remaining--; return remaining })

	select {
	case res := <-w.Done():
		if res.TimedOut || res.Key != "q" {
			t.Fatalf("unexpected result: %#v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never resolved")
	}
}

func TestFIFOOrdering(t *testing.T) {
	c := NewCoordinator()
	w1 := c.Wait(1, 0, []string{"q"}, values.KindList, time.Time{})
	w2 := c.Wait(2, 0, []string{"q"}, values.KindList, time.Time{})

	c.SignalKeyReady(0, "q", values.KindList, func() int { return 0 })

	select {
	case res := <-w1.Done():
		if res.TimedOut {
			t.Fatal("expected first waiter resolved")
		}
	default:
		t.Fatal("expected first waiter already resolved")
	}

	select {
	case <-w2.Done():
		t.Fatal("second waiter should remain queued once remaining() reports empty")
	default:
	}
}

func TestFirstKeyWinsRemovesOtherRegistration(t *testing.T) {
	c := NewCoordinator()
	w := c.Wait(1, 0, []string{"a", "b"}, values.KindList, time.Time{})

	c.SignalKeyReady(0, "a", values.KindList, func() int { return 0 })
	<-w.Done()

	// Signaling "b" afterward must not deliver a second result.
	c.SignalKeyReady(0, "b", values.KindList, func() int { return 0 })
	select {
	case res, ok := <-w.Done():
		if ok {
			t.Fatalf("unexpected second delivery: %#v", res)
		}
	default:
	}
}

func TestDeadlineExpires(t *testing.T) {
	c := NewCoordinator()
	w := c.Wait(1, 0, []string{"q"}, values.KindList, time.Now().Add(-time.Millisecond))
	c.ExpireDeadlines(time.Now())

	select {
	case res := <-w.Done():
		if !res.TimedOut {
			t.Fatal("expected timeout result")
		}
	default:
		t.Fatal("expected waiter to be resolved by ExpireDeadlines")
	}
}

func TestDisconnectRemovesWaiterSilently(t *testing.T) {
	c := NewCoordinator()
	w := c.Wait(1, 0, []string{"q"}, values.KindList, time.Time{})
	c.DisconnectClient(1)

	select {
	case <-w.Done():
		t.Fatal("expected no delivery on disconnect")
	default:
	}
	if len(c.waiters) != 0 {
		t.Fatal("expected waiter removed from coordinator")
	}
}
