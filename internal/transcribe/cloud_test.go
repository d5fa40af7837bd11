// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seg.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake"), 0o644))
	return path
}

func TestCloudTranscribe(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		assert.Equal(t, "zh", r.FormValue("language"))

		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"欢迎加群"}`))
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "sk-test", "test-model")
	text, err := c.Transcribe(context.Background(), writeWav(t))
	require.NoError(t, err)
	assert.Equal(t, "欢迎加群", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotModel)
}

func TestCloudTranscribeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "sk-test", "m")
	_, err := c.Transcribe(context.Background(), writeWav(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCloudTranscribeMissingFile(t *testing.T) {
	c := NewCloudClient("http://127.0.0.1:0", "sk", "m")
	_, err := c.Transcribe(context.Background(), "/nonexistent/seg.wav")
	assert.Error(t, err)
}

func TestTranscriberFallbackGating(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := &Transcriber{Cloud: NewCloudClient(srv.URL, "sk", "m")}
	wav := writeWav(t)

	// Cloud down, local withheld: the soft failure asks for a re-queue.
	_, err := tr.Transcribe(context.Background(), nil, wav, false)
	assert.ErrorIs(t, err, ErrCloudFailed)

	// Cloud down, local allowed but unconfigured: terminal.
	_, err = tr.Transcribe(context.Background(), nil, wav, true)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestTranscriberCloudSuccessCleansText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"♪ ＱＱ群 ♫"}`))
	}))
	defer srv.Close()

	tr := &Transcriber{Cloud: NewCloudClient(srv.URL, "sk", "m")}
	res, err := tr.Transcribe(context.Background(), nil, writeWav(t), false)
	require.NoError(t, err)
	assert.Equal(t, ProviderCloud, res.Provider)
	assert.Equal(t, "QQ群", res.Text)
}
