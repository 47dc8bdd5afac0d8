package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkBatchReadSwallowsForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Token: "token"})
	updated, err := c.MarkBatchRead(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestMarkBatchReadReportsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]int{"updated": 4})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Token: "token"})
	updated, err := c.MarkBatchRead(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, updated)
}

func TestHistoryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		w.Write([]byte(`{"messages":[{"id":9,"body":"hi"}]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Token: "token", RetryStep: time.Millisecond})
	msgs, err := c.History(context.Background(), 2, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 9, msgs[0].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHistoryDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"invalid conversation"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Token: "token", RetryStep: time.Millisecond})
	_, err := c.History(context.Background(), 2, 50, 0)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}
