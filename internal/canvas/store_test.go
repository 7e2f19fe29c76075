package canvas

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// storeFactories returns the backends that can run in this environment.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	factories := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteStore(":memory:", nil)
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	if addr := os.Getenv("WHITEBOARD_TEST_REDIS_ADDR"); addr != "" {
		factories["redis"] = func(t *testing.T) Store {
			client := redis.NewClient(&redis.Options{Addr: addr})
			prefix := "whiteboard-test:" + time.Now().Format("150405.000000") + ":"
			t.Cleanup(func() {
				ctx := context.Background()
				keys, _ := client.Keys(ctx, prefix+"*").Result()
				if len(keys) > 0 {
					_ = client.Del(ctx, keys...).Err()
				}
				_ = client.Close()
			})
			return NewRedisStoreFromClient(client, prefix)
		}
	}
	return factories
}

func TestStoreSessionLifecycle(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			session := &Session{Name: "design-review"}
			if err := store.CreateSession(ctx, session); err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			if session.ID == "" {
				t.Fatalf("expected session ID to be set")
			}

			got, err := store.GetSession(ctx, session.ID)
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if got.Name != "design-review" || len(got.Elements) != 0 {
				t.Fatalf("unexpected session: %+v", got)
			}

			byName, err := store.GetSessionByName(ctx, "design-review")
			if err != nil {
				t.Fatalf("GetSessionByName() error = %v", err)
			}
			if byName.ID != session.ID {
				t.Fatalf("expected session id %q, got %q", session.ID, byName.ID)
			}

			elements := []Element{
				{ID: "r1", Type: TypeRectangle, Width: 150, Height: 100},
				{ID: "t1", Type: TypeText, Text: &TextPayload{Content: "Hi", ContainerID: "r1"}},
			}
			if err := store.SaveElements(ctx, session.ID, elements); err != nil {
				t.Fatalf("SaveElements() error = %v", err)
			}
			saved, err := store.GetSession(ctx, session.ID)
			if err != nil {
				t.Fatalf("GetSession(after save) error = %v", err)
			}
			if len(saved.Elements) != 2 || saved.Elements[1].Text.ContainerID != "r1" {
				t.Fatalf("elements did not round-trip: %+v", saved.Elements)
			}

			if err := store.DeleteSession(ctx, session.ID); err != nil {
				t.Fatalf("DeleteSession() error = %v", err)
			}
			if _, err := store.GetSession(ctx, session.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if _, err := store.GetSessionByName(ctx, "design-review"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected name to be released, got %v", err)
			}
		})
	}
}

func TestStoreNameUniqueness(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			if err := store.CreateSession(ctx, &Session{Name: "team"}); err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			if err := store.CreateSession(ctx, &Session{Name: "team"}); !errors.Is(err, ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists, got %v", err)
			}
			// Unnamed sessions never conflict with each other.
			for i := 0; i < 2; i++ {
				if err := store.CreateSession(ctx, &Session{}); err != nil {
					t.Fatalf("CreateSession(unnamed) error = %v", err)
				}
			}
			if _, err := store.GetSessionByName(ctx, ""); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected empty name lookup to miss, got %v", err)
			}
		})
	}
}

func TestStoreListSessionsByRecency(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			base := time.Now().UTC().Add(-time.Hour)
			var created []*Session
			for i := 0; i < 3; i++ {
				s := &Session{CreatedAt: base.Add(time.Duration(i) * time.Minute)}
				if err := store.CreateSession(ctx, s); err != nil {
					t.Fatalf("CreateSession() error = %v", err)
				}
				created = append(created, s)
			}
			// Touching the oldest moves it to the front.
			if err := store.SaveElements(ctx, created[0].ID, nil); err != nil {
				t.Fatalf("SaveElements() error = %v", err)
			}

			list, err := store.ListSessions(ctx, 2)
			if err != nil {
				t.Fatalf("ListSessions() error = %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 sessions, got %d", len(list))
			}
			if list[0].ID != created[0].ID || list[1].ID != created[2].ID {
				t.Fatalf("unexpected order: %s, %s", list[0].ID, list[1].ID)
			}
		})
	}
}

func TestStoreSaveMissingSession(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			if err := store.SaveElements(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := store.DeleteSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
