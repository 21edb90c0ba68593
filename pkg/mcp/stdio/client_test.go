package stdio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonClient_Post(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/workflows", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"workflow_id": "wf-1",
			"status":      "pending",
		})
	}))
	defer srv.Close()

	client := NewDaemonClient(srv.URL)
	var result map[string]interface{}
	err := client.Post(context.Background(), "/api/v1/workflows",
		map[string]string{"request": "do something"}, &result)

	require.NoError(t, err)
	assert.Equal(t, "do something", gotBody["request"])
	assert.Equal(t, "wf-1", result["workflow_id"])
}

func TestDaemonClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "test"})
	}))
	defer srv.Close()

	client := NewDaemonClient(srv.URL)
	var result map[string]interface{}
	require.NoError(t, client.Get(context.Background(), "/health", &result))
	assert.Equal(t, "ok", result["status"])
}

func TestDaemonClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewDaemonClient(srv.URL)
	err := client.Get(context.Background(), "/api/v1/workflows/missing", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "workflow not found")
}

func TestDaemonClient_DaemonUnreachable(t *testing.T) {
	client := NewDaemonClient("http://127.0.0.1:1")
	err := client.Get(context.Background(), "/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending request")
}
