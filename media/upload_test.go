package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/apperr"
)

func TestUploadReturnsSecureURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "photo.jpg", header.Filename)
		assert.Equal(t, "grid_preset", r.FormValue("upload_preset"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://cdn.example/photo.jpg"}`))
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Preset: "grid_preset", Client: srv.Client()}
	url, err := u.Upload(context.Background(), "photo.jpg", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/photo.jpg", url)
}

func TestUploadServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Client: srv.Client()}
	_, err := u.Upload(context.Background(), "photo.jpg", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
}

func TestUploadMissingSecureURLIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Client: srv.Client()}
	_, err := u.Upload(context.Background(), "photo.jpg", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
}

func TestUploadRequiresEndpoint(t *testing.T) {
	u := &Uploader{Client: http.DefaultClient}
	_, err := u.Upload(context.Background(), "photo.jpg", strings.NewReader("x"))
	assert.True(t, apperr.IsValidation(err))
}
