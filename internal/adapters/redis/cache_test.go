package redisad_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	redisad "eywa/internal/adapters/redis"
)

func TestCache_RoundTripAndDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	type payload struct {
		Score float64 `json:"score"`
	}

	ok, err := c.Get(ctx, "score:1", &payload{})
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "score:1", payload{Score: 4.4}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	ok, err = c.Get(ctx, "score:1", &got)
	if err != nil || !ok || got.Score != 4.4 {
		t.Fatalf("get: ok=%v err=%v got=%+v", ok, err, got)
	}

	if err := c.Del(ctx, "score:1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, _ = c.Get(ctx, "score:1", &got)
	if ok {
		t.Fatal("expected miss after delete")
	}
}
