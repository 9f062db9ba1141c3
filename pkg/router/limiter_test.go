package router

import (
	"testing"
	"time"
)

func TestIPRateLimiterAllowsUpToMax(t *testing.T) {
	l := NewIPRateLimiter(2)
	if !l.AllowConnection("1.2.3.4") {
		t.Error("first connection should be allowed")
	}
	if !l.AllowConnection("1.2.3.4") {
		t.Error("second connection should be allowed")
	}
	if l.AllowConnection("1.2.3.4") {
		t.Error("third connection should be denied")
	}
}

func TestIPRateLimiterTracksPerIP(t *testing.T) {
	l := NewIPRateLimiter(1)
	if !l.AllowConnection("1.1.1.1") {
		t.Error("first IP should be allowed")
	}
	if !l.AllowConnection("2.2.2.2") {
		t.Error("a different IP should be allowed independently")
	}
}

func TestIPRateLimiterRelease(t *testing.T) {
	l := NewIPRateLimiter(1)
	if !l.AllowConnection("1.2.3.4") {
		t.Fatal("first connection should be allowed")
	}
	if l.AllowConnection("1.2.3.4") {
		t.Fatal("second connection should be denied before release")
	}
	l.ReleaseConnection("1.2.3.4")
	if !l.AllowConnection("1.2.3.4") {
		t.Error("connection should be allowed again after release")
	}
}

func TestIPRateLimiterDisabled(t *testing.T) {
	l := NewIPRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !l.AllowConnection("1.2.3.4") {
			t.Fatal("a disabled limiter (maxPerIP<=0) should never deny")
		}
	}
}

func TestHandshakeLimiterAllowsWithinBurst(t *testing.T) {
	l := NewHandshakeLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Errorf("call %d within burst should be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("call beyond burst should be denied")
	}
}

func TestHandshakeLimiterRefillsOverTime(t *testing.T) {
	l := NewHandshakeLimiter(1000, 1)
	if !l.Allow() {
		t.Fatal("first call should be allowed")
	}
	if l.Allow() {
		t.Fatal("immediate second call should be denied")
	}
	time.Sleep(10 * time.Millisecond)
	if !l.Allow() {
		t.Error("call after refill window should be allowed")
	}
}

func TestHandshakeLimiterDisabled(t *testing.T) {
	l := NewHandshakeLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("a disabled limiter (rate<=0) should never deny")
		}
	}
}
