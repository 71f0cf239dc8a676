package advisory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCachedRequirements(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	next := Func{RequireFn: func(ctx context.Context, scheme string) ([]RequirementField, error) {
		calls.Add(1)
		return []RequirementField{{ID: "landAcres", Label: "Land", Type: FieldNumber}}, nil
	}}
	c := NewCached(next, rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		fields, err := c.Requirements(ctx, "Uzhavar Pathukappu")
		if err != nil {
			t.Fatalf("Requirements: %v", err)
		}
		if len(fields) != 1 || fields[0].Type != FieldNumber {
			t.Fatalf("unexpected fields %+v", fields)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}

	if _, err := c.Requirements(WithLanguage(ctx, Tamil), "Uzhavar Pathukappu"); err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("languages must not share cache entries, got %d calls", calls.Load())
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Requirements(ctx, "Uzhavar Pathukappu"); err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expired entry should be refetched, got %d calls", calls.Load())
	}
}

func TestCachedSearchSkipsErrorsAndPassesThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	next := Func{
		SearchFn: func(ctx context.Context, q string) (SearchResult, error) {
			if calls.Add(1) == 1 {
				return SearchResult{}, ErrUnavailable
			}
			return SearchResult{Schemes: []Scheme{{Name: "CMCHIS"}}}, nil
		},
		ChatFn: func(ctx context.Context, m string) (string, error) { return "reply", nil },
	}
	c := NewCached(next, rdb, time.Minute)
	ctx := context.Background()

	if _, err := c.SearchSchemes(ctx, "health"); err == nil {
		t.Fatal("expected upstream error")
	}
	if _, err := c.SearchSchemes(ctx, "health"); err != nil {
		t.Fatalf("SearchSchemes: %v", err)
	}
	res, err := c.SearchSchemes(ctx, "  Health ")
	if err != nil || len(res.Schemes) != 1 {
		t.Fatalf("expected cached hit, got %+v %v", res, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("failures must not be cached, got %d calls", calls.Load())
	}

	if got, err := c.Chat(ctx, "hi"); err != nil || got != "reply" {
		t.Fatalf("Chat passthrough: %q %v", got, err)
	}
}

func TestCachedSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	next := Func{SearchFn: func(ctx context.Context, q string) (SearchResult, error) {
		return SearchResult{Schemes: []Scheme{{Name: "x"}}}, nil
	}}
	res, err := NewCached(next, rdb, time.Minute).SearchSchemes(context.Background(), "q")
	if err != nil || len(res.Schemes) != 1 {
		t.Fatalf("cache outage should not fail the call: %+v %v", res, err)
	}
}
