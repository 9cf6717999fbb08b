package sessioncache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/frontdeskai/switchboard/pkg/types"
)

func sampleState() State {
	return State{
		History: []types.ConversationTurn{
			{Role: types.RoleCaller, Text: "hi", Timestamp: time.Now().UTC().Truncate(time.Second)},
			{Role: types.RoleAgent, Text: "hello!", Timestamp: time.Now().UTC().Truncate(time.Second)},
		},
		Phase: types.PhaseQualification,
	}
}

func TestMemoryCache(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, found, err := m.Load(ctx, "CA1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("found state for unknown call")
	}

	want := sampleState()
	if err := m.Save(ctx, "CA1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := m.Load(ctx, "CA1")
	if err != nil || !found {
		t.Fatalf("Load after Save: found=%v err=%v", found, err)
	}
	if got.Phase != want.Phase || len(got.History) != len(want.History) {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

// Redis integration tests run only when a test server address is provided.
func testRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("SWITCHBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SWITCHBOARD_TEST_REDIS_ADDR not set — skipping Redis integration tests")
	}
	r, err := Connect(context.Background(), Config{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = r.Disconnect() })
	return r
}

func TestRedisRoundTrip(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()

	_, found, err := r.Load(ctx, "CA-missing")
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if found {
		t.Fatal("found state for unknown call")
	}

	want := sampleState()
	if err := r.Save(ctx, "CA-roundtrip", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := r.Load(ctx, "CA-roundtrip")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if got.Phase != want.Phase {
		t.Fatalf("phase = %s, want %s", got.Phase, want.Phase)
	}
	if got.History[1].Text != "hello!" {
		t.Fatalf("history = %+v", got.History)
	}
}
