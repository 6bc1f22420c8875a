package cache

import (
	"testing"
	"time"

	"github.com/hitoshi/reachscan/internal/model"
)

func TestProfileCache_GetMiss(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	_, ok := c.Get("unknown")
	if ok {
		t.Error("expected cache miss for unknown handle")
	}
}

func TestProfileCache_PutThenGet(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	want := model.ProfileInfo{DisplayName: "Alice", FollowerCount: 1000}
	c.Put("alice", want)

	got, ok := c.Get("alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestProfileCache_ExpiredEntry_Miss(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	// 時計を差し替えてTTL超過を再現する
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})

	// 5分1秒後（TTLは5分）
	now = base.Add(5*time.Minute + time.Second)

	_, ok := c.Get("alice")
	if ok {
		t.Error("expected cache miss after TTL expiry")
	}
	// 期限切れエントリは読み取り時に削除される
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after expired read", c.Len())
	}
}

func TestProfileCache_ExactlyAtTTL_StillHit(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})

	// 経過時間がTTLちょうどの場合はまだ有効
	now = base.Add(5 * time.Minute)

	_, ok := c.Get("alice")
	if !ok {
		t.Error("expected cache hit exactly at TTL")
	}
}

func TestProfileCache_PutOverwrites(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	c.Put("alice", model.ProfileInfo{DisplayName: "Old"})
	c.Put("alice", model.ProfileInfo{DisplayName: "New"})

	got, ok := c.Get("alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.DisplayName != "New" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "New")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestProfileCache_PutRefreshesTTL(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})

	// 4分後に再格納するとTTLが更新される
	now = base.Add(4 * time.Minute)
	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})

	// 最初の格納から7分後（再格納から3分後）でもヒットする
	now = base.Add(7 * time.Minute)
	_, ok := c.Get("alice")
	if !ok {
		t.Error("expected cache hit after refresh")
	}
}

func TestProfileCache_Clear(t *testing.T) {
	c := NewProfileCache(DefaultTTL)

	c.Put("alice", model.ProfileInfo{})
	c.Put("bob", model.ProfileInfo{})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Clear", c.Len())
	}
	if _, ok := c.Get("alice"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestNewProfileCache_NonPositiveTTL_UsesDefault(t *testing.T) {
	c := NewProfileCache(0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}

	c = NewProfileCache(-time.Minute)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}
