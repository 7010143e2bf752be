package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version": "0.3.12"}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models": [{"name": "llama3.2:latest", "model": "llama3.2:latest"}, {"name": "nomic-embed-text:latest"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckOllama(t *testing.T) {
	srv := fakeOllama(t)

	checks := checkOllama(context.Background(), srv.URL, "llama3.2", "llama3.1:8b", "nomic-embed-text", "llama3.2")
	require.Len(t, checks, 4)

	assert.NoError(t, checks[0].err)
	assert.Contains(t, checks[0].detail, "0.3.12")

	assert.Equal(t, "model llama3.2", checks[1].name)
	assert.NoError(t, checks[1].err)

	assert.Equal(t, "model llama3.1:8b", checks[2].name)
	assert.ErrorContains(t, checks[2].err, "ollama pull llama3.1:8b")

	assert.NoError(t, checks[3].err)
	assert.Equal(t, 1, printChecks(checks))
}

func TestCheckOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	checks := checkOllama(context.Background(), srv.URL, "llama3.2")
	require.Len(t, checks, 1)
	assert.Error(t, checks[0].err)
}

func TestCheckRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := "redis://" + mr.Addr()

	c := checkRedis(context.Background(), addr)
	assert.NoError(t, c.err)

	mr.Close()
	c = checkRedis(context.Background(), addr)
	assert.Error(t, c.err)
}
