package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "s3cret", r.Header.Get("X-Secret-Key"))

		var in map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, float64(7), in["robloxId"])

		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"user is already a member"}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	resp, err := c.JSON(context.Background(), http.MethodPost, srv.URL+"/accept-join",
		map[string]string{"X-Secret-Key": "s3cret"}, map[string]int{"robloxId": 7})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "already a member")
}

func TestClient_JSON_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(20 * time.Millisecond)
	_, err := c.JSON(context.Background(), http.MethodGet, srv.URL, nil, nil)
	assert.Error(t, err)
}
