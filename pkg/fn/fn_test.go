package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unwrap: %d %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("expected err")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr: %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("expected ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("expected err")
	}
}

func TestCollect(t *testing.T) {
	all := []Result[int]{Ok(1), Ok(2), Ok(3)}
	r := Collect(all)
	vals, err := r.Unwrap()
	if err != nil || len(vals) != 3 || vals[1] != 2 {
		t.Fatalf("collect: %v %v", vals, err)
	}

	bad := []Result[int]{Ok(1), Err[int](errors.New("mid")), Ok(3)}
	if Collect(bad).IsOk() {
		t.Fatal("expected first error")
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	in := []int{5, 4, 3, 2, 1}
	out := ParMap(in, 2, func(v int) int { return v * 10 })
	for i, v := range out {
		if v != in[i]*10 {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}

func TestParMapBoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	in := make([]int, 20)
	ParMap(in, 3, func(int) int {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return 0
	})
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds bound", peak.Load())
	}
}

func TestThenShortCircuits(t *testing.T) {
	first := func(_ context.Context, n int) Result[int] { return Err[int](errors.New("first")) }
	called := false
	second := func(_ context.Context, n int) Result[int] { called = true; return Ok(n) }
	r := Then(first, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("second stage must not run after failure")
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 5, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("transient"))
		}
		return Ok(attempts)
	})
	if r.IsErr() || attempts != 3 {
		t.Fatalf("attempts=%d result=%v", attempts, r)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retry(ctx, RetryOpts{MaxAttempts: 3, InitialWait: 50 * time.Millisecond}, func(context.Context) Result[int] {
		return Err[int](errors.New("always"))
	})
	_, err := r.Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestFanOutResult(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	vals, err := r.Unwrap()
	if err != nil || vals[0] != 1 || vals[1] != 2 {
		t.Fatalf("fanout: %v %v", vals, err)
	}
}
