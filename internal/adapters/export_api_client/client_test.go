package export_api_client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"search-service/internal/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExportListings(t *testing.T) {
	var gotQuery, gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/listings/export", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotTrace = r.Header.Get("X-Trace-ID")
		_, _ = io.WriteString(w, `{
			"content": [
				{"id": 42, "title": "Loft", "price": "2500", "bedrooms": 2, "address": "Lenina 1, Central, Minsk"},
				{"title": "no id"},
				{"id": "b-7", "type": "house", "isAvailable": false}
			],
			"last": true
		}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, time.Second)
	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-1")

	page, err := client.ExportListings(ctx, 3, 50)
	require.NoError(t, err)
	assert.True(t, page.Last)
	// запись без id отброшена, но учтена в Fetched
	assert.Equal(t, 3, page.Fetched)
	items := page.Items
	assert.Equal(t, "page=3&size=50", gotQuery)
	assert.Equal(t, "trace-1", gotTrace)

	require.Len(t, items, 2)
	assert.Equal(t, "42", items[0].ID)
	require.NotNil(t, items[0].Price)
	assert.Equal(t, 2500.0, *items[0].Price)
	require.NotNil(t, items[0].Bedrooms)
	assert.Equal(t, 2, *items[0].Bedrooms)
	assert.Equal(t, "b-7", items[1].ID)
	require.NotNil(t, items[1].Available)
	assert.False(t, *items[1].Available)
}

func TestClient_ExportUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/users/export", r.URL.Path)
		_, _ = io.WriteString(w, `{"content": [{"id": "u-1", "username": "anna", "role": "agent"}], "last": false}`)
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, srv.URL, time.Second).ExportUsers(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.False(t, page.Last)
	assert.Equal(t, 1, page.Fetched)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "anna", page.Items[0].Username)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, time.Second).ExportListings(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[not json`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, time.Second).ExportUsers(context.Background(), 0, 10)
	assert.Error(t, err)
}
