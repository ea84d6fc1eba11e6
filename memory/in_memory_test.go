package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentloom/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PutMergesAndGetCopies(t *testing.T) {
	store := NewInMemoryStore()

	m, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty memory, got %#v", m)
	}

	if err := store.Put("s1", map[string]any{"k1": "v1", "k2": 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := store.Get("s1")
	if len(got) != 2 || got["k1"] != "v1" || got["k2"] != 2 {
		t.Fatalf("unexpected memory contents: %#v", got)
	}

	got["k1"] = "changed"
	again, _ := store.Get("s1")
	if again["k1"] != "v1" {
		t.Fatalf("returned map aliases store: %#v", again)
	}
}

func TestInMemoryStore_SearchMatchesSubstrings(t *testing.T) {
	store := NewInMemoryStore()
	store.Store("s2", "my favorite color is blue", map[string]any{"turn": 1})
	store.Store("s2", "I live in Berlin", map[string]any{"turn": 2})
	store.Store("s2", "Blueberries are great", map[string]any{"turn": 3})

	res, err := store.Search("s2", "blue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", len(res))
	}
	if res[0].Content != "my favorite color is blue" {
		t.Fatalf("expected insertion order, got %q first", res[0].Content)
	}

	all, _ := store.Search("s2", "", 2)
	if len(all) != 2 {
		t.Fatalf("limit not honored: got %d", len(all))
	}
}

func TestInMemoryStore_DeleteByID(t *testing.T) {
	store := NewInMemoryStore()
	for i := 0; i < 3; i++ {
		store.Store("s3", fmt.Sprintf("note %d", i), nil)
	}

	res, _ := store.Search("s3", "", 10)
	if len(res) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(res))
	}

	if err := store.Delete("s3", res[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	left, _ := store.Search("s3", "", 10)
	if len(left) != 2 {
		t.Fatalf("expected 2 after delete, got %d", len(left))
	}

	if err := store.Delete("s3", "does_not_exist"); err == nil {
		t.Fatal("expected error deleting unknown memory")
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put("s4", map[string]any{fmt.Sprintf("k%d", i%5): i}); err != nil {
				t.Errorf("put: %v", err)
			}
			if _, err := store.Get("s4"); err != nil {
				t.Errorf("get: %v", err)
			}
			if _, err := store.Search("s4", "", 5); err != nil {
				t.Errorf("search: %v", err)
			}
		}()
	}
	wg.Wait()

	m, _ := store.Get("s4")
	if len(m) != 5 {
		t.Fatalf("expected 5 keys after concurrent puts, got %d", len(m))
	}
}
