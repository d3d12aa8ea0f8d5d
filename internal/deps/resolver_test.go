package deps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/storage"
)

// memStore — in-memory ObjectStore для тестов.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (storage.Ref, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.objects[key] = data
	return storage.Ref("s3://test/" + key), nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// votesAPI — фейковый внешний API с двумя страницами реестра.
func votesAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /members", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"items":       []map[string]string{{"member_id": "m1"}, {"member_id": "m2"}},
				"next_cursor": "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"items":       []map[string]string{{"member_id": "m3"}},
				"next_cursor": "",
			})
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /members/{id}/voting", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"votes_cast":     3,
			"votes_received": 1,
			"proposals":      0,
		})
	})

	return httptest.NewServer(mux)
}

func TestSet_UnknownDependency(t *testing.T) {
	set := NewSet(nil)

	err := set.Resolve(context.Background(), "nope", "snap-1")
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestCommunityVotes_CursorLoop(t *testing.T) {
	srv := votesAPI(t)
	defer srv.Close()

	store := newMemStore()
	resolver := &CommunityVotesResolver{
		BaseURL:     srv.URL,
		Store:       store,
		Client:      srv.Client(),
		Concurrency: 2,
	}
	set := NewSet(nil, resolver)

	if err := set.Resolve(context.Background(), "community_votes", "snap-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok := store.objects["deps/snap-1/community_votes.json"]
	if !ok {
		t.Fatal("artifact not materialized at deterministic key")
	}

	var records []compute.VoteRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	// Обе страницы cursor-цикла: m1, m2, m3
	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
	if records[0].MemberID != "m1" || records[2].MemberID != "m3" {
		t.Errorf("page order not preserved: %+v", records)
	}
	if records[0].VotesCast != 3 {
		t.Errorf("detail fetch not applied: %+v", records[0])
	}
}

func TestCommunityVotes_Idempotent(t *testing.T) {
	srv := votesAPI(t)
	defer srv.Close()

	store := newMemStore()
	resolver := &CommunityVotesResolver{BaseURL: srv.URL, Store: store, Client: srv.Client()}

	for i := 0; i < 2; i++ {
		if err := resolver.Resolve(context.Background(), "snap-1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// Перезапись по тому же ключу: один объект, не два
	if len(store.objects) != 1 {
		t.Errorf("expected exactly one artifact, got %d", len(store.objects))
	}
	if store.puts != 2 {
		t.Errorf("expected overwrite on second resolve, puts=%d", store.puts)
	}
}

func TestCommunityVotes_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := newMemStore()
	resolver := &CommunityVotesResolver{BaseURL: srv.URL, Store: store, Client: srv.Client()}

	err := resolver.Resolve(context.Background(), "snap-1")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Error("no artifact should be written on failure")
	}
}

func TestMemberActivity_CursorLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /activity", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"member_id": "m1", "last_active_at": "2026-08-01T00:00:00Z", "score": 10},
				},
				"next_cursor": "p2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"member_id": "m2", "last_active_at": "2026-07-01T00:00:00Z", "score": 5},
			},
			"next_cursor": "",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newMemStore()
	resolver := &MemberActivityResolver{BaseURL: srv.URL, Store: store, Client: srv.Client()}

	if err := resolver.Resolve(context.Background(), "snap-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []compute.ActivityRecord
	if err := json.Unmarshal(store.objects["deps/snap-9/member_activity.json"], &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].MemberID != "m2" {
		t.Errorf("unexpected records: %+v", records)
	}
}
