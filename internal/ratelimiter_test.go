package internal

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("hit over the limit should be denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("first key should be allowed")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("second key should be unaffected by the first")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("first key should now be over its budget")
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	limiter := NewRateLimiter(1, 20*time.Millisecond)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("first hit should be allowed")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("second immediate hit should be denied")
	}
	time.Sleep(30 * time.Millisecond)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("hit after the window should be allowed again")
	}
}
