package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTrack(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tracks/random", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(Track{
			ID:         "trk-42",
			Title:      "Take On Me",
			Artist:     "a-ha",
			PreviewURL: "https://cdn.example.com/trk-42.mp3",
			Year:       1985,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	track, err := c.FetchTrack(context.Background(), Filters{
		Genre:      "pop",
		Difficulty: "easy",
		Exclude:    []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "trk-42", track.ID)
	assert.Equal(t, 1985, track.Year)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, map[string]string{
		"genre":      "pop",
		"difficulty": "easy",
		"exclude":    "a,b",
	}, gotQuery)
}

func TestFetchTrackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no tracks match", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.FetchTrack(context.Background(), Filters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no tracks match")
}

func TestFetchTrackRejectsMissingPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Track{ID: "trk-1", Title: "Silence"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.FetchTrack(context.Background(), Filters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a preview")
}
