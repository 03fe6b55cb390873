package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeMapping(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "item-images.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
	return path
}

func TestResolveFromMapping(t *testing.T) {
	path := writeMapping(t, `{"Dragonclaw Hook":"https://cdn.example.com/hook.png"}`)
	r := NewResolver(path)

	res := r.Resolve(context.Background(), "Dragonclaw Hook")
	if res.ImageURL != "https://cdn.example.com/hook.png" {
		t.Errorf("unexpected image url: %s", res.ImageURL)
	}
	if res.ItemName != "Dragonclaw Hook" {
		t.Errorf("unexpected item name: %s", res.ItemName)
	}
}

func TestResolveMissingMappingFileFallsBack(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "absent.json"),
		WithLiquipediaBaseURL("http://127.0.0.1:0"))

	res := r.Resolve(context.Background(), "Unknown Thing")
	if res.ImageURL != defaultPlaceholder {
		t.Errorf("expected placeholder, got %s", res.ImageURL)
	}
}

func TestResolveEmptyNameReturnsPlaceholder(t *testing.T) {
	r := NewResolver("")
	res := r.Resolve(context.Background(), "   ")
	if res.ImageURL != defaultPlaceholder {
		t.Errorf("expected placeholder, got %s", res.ImageURL)
	}
	if res.LiquipediaURL != "" {
		t.Errorf("expected no article url for empty name, got %s", res.LiquipediaURL)
	}
}

func TestResolveLiveLookup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/Golden_Roshan" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`<img src="https://liquipedia.net/commons/images/a/b2/Cosmetic_icon_Golden_Roshan.png">`))
	}))
	defer srv.Close()

	path := writeMapping(t, `{}`)
	r := NewResolver(path, WithLiquipediaBaseURL(srv.URL))

	res := r.Resolve(context.Background(), "Golden Roshan")
	if res.ImageURL != "https://liquipedia.net/commons/images/a/b2/Cosmetic_icon_Golden_Roshan.png" {
		t.Errorf("unexpected image url: %s", res.ImageURL)
	}

	// Second call should be served from the warmed mapping.
	res = r.Resolve(context.Background(), "Golden Roshan")
	if res.ImageURL != "https://liquipedia.net/commons/images/a/b2/Cosmetic_icon_Golden_Roshan.png" {
		t.Errorf("unexpected cached url: %s", res.ImageURL)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single upstream hit, got %d", hits.Load())
	}
}

func TestResolveLiveLookupMissReturnsPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := writeMapping(t, `{}`)
	r := NewResolver(path, WithLiquipediaBaseURL(srv.URL))

	res := r.Resolve(context.Background(), "Nonexistent Item")
	if res.ImageURL != defaultPlaceholder {
		t.Errorf("expected placeholder, got %s", res.ImageURL)
	}
}

func TestResolveConcurrentLookupsAreDeduplicated(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`https://liquipedia.net/commons/images/c/d4/Cosmetic_icon_Hook.png`))
	}))
	defer srv.Close()

	path := writeMapping(t, `{}`)
	r := NewResolver(path, WithLiquipediaBaseURL(srv.URL))

	var wg sync.WaitGroup
	results := make([]Resolution, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "Hook")
		}(i)
	}

	// Let the goroutines pile up on the singleflight before the upstream
	// responds.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 upstream hit for concurrent lookups, got %d", got)
	}
	for i, res := range results {
		if res.ImageURL != "https://liquipedia.net/commons/images/c/d4/Cosmetic_icon_Hook.png" {
			t.Errorf("result %d: unexpected url %s", i, res.ImageURL)
		}
	}
}
