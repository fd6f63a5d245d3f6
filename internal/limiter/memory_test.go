package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BlocksAfterMaxFailsAndExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	m.now = func() time.Time { return now }
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		if blocked, _, _ := m.Failure(ctx, "admin", ip); blocked {
			t.Fatalf("blocked too early at attempt %d", i+1)
		}
	}
	blocked, dur, err := m.Failure(ctx, "admin", ip)
	if err != nil || !blocked || dur != 5*time.Minute {
		t.Fatalf("third failure: blocked=%v dur=%v err=%v", blocked, dur, err)
	}

	ok, retry, _ := m.Allow(ctx, "admin", ip)
	if ok || retry != 5*time.Minute {
		t.Fatalf("Allow while blocked: ok=%v retry=%v", ok, retry)
	}
	if ok, _, _ := m.Allow(ctx, "admin", HashIP("10.0.0.2")); !ok {
		t.Fatalf("other address must not be blocked")
	}

	now = now.Add(6 * time.Minute)
	if ok, _, _ := m.Allow(ctx, "admin", ip); !ok {
		t.Fatalf("block must expire")
	}
}

func TestMemory_WindowResetsAndSuccessClears(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	m.now = func() time.Time { return now }
	ip := HashIP("10.0.0.1")

	_, _, _ = m.Failure(ctx, "u", ip)
	now = now.Add(2 * time.Minute)
	if blocked, _, _ := m.Failure(ctx, "u", ip); blocked {
		t.Fatalf("failure outside window must restart the count")
	}
	_ = m.Success(ctx, "u", ip)
	if blocked, _, _ := m.Failure(ctx, "u", ip); blocked {
		t.Fatalf("success must clear failures")
	}
}
