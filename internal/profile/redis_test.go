package profile

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:"), mr
}

func TestRedisRoundTripAndLayout(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	p := fakeProfile(t)

	if err := s.Save(ctx, "9876543210", p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("test:user_profile_9876543210") {
		t.Fatalf("expected profile under prefixed key, keys=%v", mr.Keys())
	}
	got, err := s.Load(ctx, "9876543210")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", p, got)
	}
}

func TestRedisCorruptPayload(t *testing.T) {
	s, mr := newRedisStore(t)
	if err := mr.Set("test:user_profile_bad", "]]"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUpdateConcurrent(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "S", func(p *Profile, _ bool) error {
				p.Reminders = append(p.Reminders, Reminder{SchemeName: "X"})
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			oks++
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if !errors.Is(err, redis.TxFailedErr) {
			t.Fatalf("unexpected update error: %v", err)
		}
	}
	p, err := s.Load(ctx, "S")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Reminders) != oks {
		t.Fatalf("expected %d reminders from successful updates, got %d", oks, len(p.Reminders))
	}
}

func TestRedisSessionsAndCurrentSlot(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	for _, id := range []string{"b@example.com", "9876543210"} {
		if err := s.Save(ctx, id, Profile{Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.SessionIDs(ctx)
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"9876543210", "b@example.com"}) {
		t.Fatalf("unexpected sessions: %v", ids)
	}

	if _, err := s.CurrentSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty slot, got %v", err)
	}
	if err := s.SetCurrentSession(ctx, "9876543210"); err != nil {
		t.Fatal(err)
	}
	if id, err := s.CurrentSession(ctx); err != nil || id != "9876543210" {
		t.Fatalf("CurrentSession = %q, %v", id, err)
	}
	if err := s.ClearCurrentSession(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CurrentSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cleared slot, got %v", err)
	}
}
