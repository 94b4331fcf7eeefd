package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestAllowBurstThenRefill(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	if !l.Allow("s1", now) || !l.Allow("s1", now) {
		t.Fatal("burst should allow two events")
	}
	if l.Allow("s1", now) {
		t.Fatal("third event in the same instant should be limited")
	}
	// 其他 key 不受影响
	if !l.Allow("s2", now) {
		t.Fatal("independent key was limited")
	}
	if !l.Allow("s1", now.Add(time.Second)) {
		t.Fatal("token should refill after one second")
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *KeyLimiter = New(0, 0, 0)
	if l != nil {
		t.Fatal("expected nil limiter for non-positive rate")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("k", time.Now()) {
			t.Fatal("nil limiter must allow")
		}
	}
	l.Forget("k")
}

func TestIdleKeysAreEvicted(t *testing.T) {
	l := New(100, 100, time.Second)
	start := time.Unix(1_700_000_000, 0)

	for i := 0; i < 511; i++ {
		l.Allow(fmt.Sprintf("idle-%d", i), start)
	}
	// 第 512 次调用触发淘汰
	l.Allow("fresh", start.Add(time.Minute))

	if got := l.Len(); got != 1 {
		t.Fatalf("tracked keys = %d, want 1", got)
	}
}

func TestForget(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	l.Allow("s", now)
	l.Forget("s")
	if l.Len() != 0 {
		t.Fatal("key not forgotten")
	}
	if !l.Allow("s", now) {
		t.Fatal("forgotten key should start with a full bucket")
	}
}
