package packages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dashworker/internal/infrastructure/resilience"
)

func testFetcher(retries int) *Fetcher {
	return NewFetcher(FetchConfig{Timeout: 5 * time.Second, MaxRetries: retries})
}

func TestFetchHTTP(t *testing.T) {
	archive := zipArchive(t, sampleFiles)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wheels/plotkit-0.3.1.zip", r.URL.Path)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL + "/wheels/plotkit-0.3.1.zip")
	require.NoError(t, err)

	data, err := testFetcher(0).Fetch(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, archive, data)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL + "/x.zip")
	data, err := testFetcher(2).Fetch(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher(0)
	u, _ := url.Parse(srv.URL + "/missing.zip")
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), u)
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	_, err := f.Fetch(context.Background(), u)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local-1.0.0.zip")
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	data, err := testFetcher(0).Fetch(context.Background(), &url.URL{Scheme: "file", Path: path})
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))

	_, err = testFetcher(0).Fetch(context.Background(), &url.URL{Scheme: "file", Path: path + ".gone"})
	assert.Error(t, err)
}

func TestFetchCancelled(t *testing.T) {
	f := NewFetcher(FetchConfig{Timeout: time.Second, RPS: 0.001})
	u, _ := url.Parse("http://127.0.0.1:1/x.zip")

	// The first call consumes the only token.
	_, _ = f.Fetch(context.Background(), u)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, u)
	assert.Error(t, err)
}
