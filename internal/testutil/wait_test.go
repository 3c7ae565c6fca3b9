package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		succeedAt int64 // 0 never succeeds
		want      bool
	}{
		{"immediate", 1, true},
		{"eventual", 3, true},
		{"timeout", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int64
			got := WaitFor(t, func() bool {
				n := calls.Add(1)
				return tt.succeedAt > 0 && n >= tt.succeedAt
			}, WithTimeout(200*time.Millisecond), WithInterval(5*time.Millisecond))

			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if tt.want && calls.Load() != tt.succeedAt {
				t.Errorf("Expected %d evaluations, got %d", tt.succeedAt, calls.Load())
			}
		})
	}
}

func TestWaitFor_RespectsTimeout(t *testing.T) {
	t.Parallel()
	start := time.Now()
	WaitFor(t, func() bool { return false }, WithTimeout(50*time.Millisecond), WithInterval(10*time.Millisecond))

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected WaitFor to give up after ~50ms, took %v", elapsed)
	}
}

func TestWaitFor_ConditionFromGoroutine(t *testing.T) {
	t.Parallel()
	var done atomic.Bool
	time.AfterFunc(20*time.Millisecond, func() { done.Store(true) })

	MustWaitFor(t, done.Load, WithTimeout(time.Second))
}
