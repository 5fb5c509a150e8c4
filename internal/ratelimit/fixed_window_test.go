package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 0, time.Minute); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 5, 0); err == nil {
		t.Fatal("expected error for non-positive window")
	}
	if _, err := NewRedisFixedWindowLimiter("  ", "", "", 5, time.Minute); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestAllowEnforcesLimitPerKey(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	if !limiter.Allow("ip-1") {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("ip-1") {
		t.Fatal("second request should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatal("third request should be limited")
	}
	if !limiter.Allow("ip-2") {
		t.Fatal("other keys keep their own quota")
	}
}

func TestAllowFailsClosedWhenRedisDown(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv.Close()

	if limiter.Allow("ip-1") {
		t.Fatal("expected fail-closed when redis is unreachable")
	}
}

func TestAllowNilLimiter(t *testing.T) {
	var limiter *FixedWindowLimiter
	if limiter.Allow("ip-1") {
		t.Fatal("nil limiter must deny")
	}
}
