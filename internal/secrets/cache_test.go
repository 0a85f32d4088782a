package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int64
	fetch func(name string) (string, error)
}

func (s *countingSource) Fetch(_ context.Context, name string) (string, error) {
	s.calls.Add(1)
	return s.fetch(name)
}

func TestCache_FetchesOnce(t *testing.T) {
	src := &countingSource{fetch: func(name string) (string, error) {
		return "value-" + name, nil
	}}
	cache := NewCache(src)

	for i := 0; i < 5; i++ {
		v, err := cache.Get(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "value-token", v)
	}
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestCache_DistinctKeysFetchSeparately(t *testing.T) {
	src := &countingSource{fetch: func(name string) (string, error) {
		return "value-" + name, nil
	}}
	cache := NewCache(src)

	a, err := cache.Get(context.Background(), "a")
	require.NoError(t, err)
	b, err := cache.Get(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, "value-a", a)
	assert.Equal(t, "value-b", b)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestCache_ConcurrentFirstReadsCollapse(t *testing.T) {
	release := make(chan struct{})
	src := &countingSource{fetch: func(name string) (string, error) {
		<-release
		return "shared", nil
	}}
	cache := NewCache(src)

	const readers = 16
	var wg sync.WaitGroup
	results := make([]string, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(context.Background(), "token")
		}(i)
	}

	// Give every goroutine a chance to join the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestCache_ErrorNotCached(t *testing.T) {
	fail := true
	src := &countingSource{fetch: func(name string) (string, error) {
		if fail {
			return "", errors.New("upstream down")
		}
		return "recovered", nil
	}}
	cache := NewCache(src)

	_, err := cache.Get(context.Background(), "token")
	require.Error(t, err)

	fail = false
	v, err := cache.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestEnvSource(t *testing.T) {
	src := &EnvSource{Lookup: func(name string) (string, bool) {
		if name == "WA_TOKEN" {
			return "tok", true
		}
		return "", false
	}}

	v, err := src.Fetch(context.Background(), "WA_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	_, err = src.Fetch(context.Background(), "MISSING")
	assert.ErrorContains(t, err, "MISSING")
}

func TestGCPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/proj-1/secrets/wa-token/versions/latest:access", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{
				"data": base64.StdEncoding.EncodeToString([]byte("secret-value")),
			},
		})
	}))
	defer srv.Close()

	src := &GCPSource{
		ProjectID: "proj-1",
		BaseURL:   srv.URL,
		Client:    srv.Client(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	v, err := src.Fetch(context.Background(), "wa-token")
	require.NoError(t, err)
	assert.Equal(t, "secret-value", v)
}

func TestGCPSource_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	src := &GCPSource{
		ProjectID: "proj-1",
		BaseURL:   srv.URL,
		Client:    srv.Client(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := src.Fetch(context.Background(), "wa-token")
	assert.ErrorContains(t, err, "403")
}
