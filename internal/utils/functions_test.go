package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenewOutputPath(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "archive.tar")
	require.NoError(t, os.WriteFile(original, []byte("x"), 0644))

	renewed := RenewOutputPath(original, nil)
	assert.Equal(t, filepath.Join(dir, "archive-(1).tar"), renewed)

	require.NoError(t, os.WriteFile(renewed, []byte("x"), 0644))
	assert.Equal(t, filepath.Join(dir, "archive-(2).tar"), RenewOutputPath(original, nil))

	claimed := filepath.Join(dir, "archive-(2).tar")
	inUse := func(p string) bool { return p == claimed }
	assert.Equal(t, filepath.Join(dir, "archive-(3).tar"), RenewOutputPath(original, inUse))
}

func TestParseHeaderArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{
		"Authorization: Basic dXNlcjpwYXNz",
		"X-Empty:",
		"malformed",
		"Cookie: a=b: c",
	})
	assert.Equal(t, map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
		"X-Empty":       "",
		"Cookie":        "a=b: c",
	}, headers)
}

func TestReadHeadersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "headers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Authorization": "Bearer abc", "X-Trace": "1"}`), 0644))

	headers, err := ReadHeadersFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", headers["Authorization"])
	assert.Equal(t, "1", headers["X-Trace"])

	require.NoError(t, os.WriteFile(path, []byte(`["not", "an", "object"]`), 0644))
	_, err = ReadHeadersFile(path)
	assert.Error(t, err)

	_, err = ReadHeadersFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMergeHeaders(t *testing.T) {
	merged := MergeHeaders(
		map[string]string{"A": "1", "B": "1"},
		map[string]string{"B": "2"},
		nil,
	)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged)
}

func TestCleanCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"a.bin.1.part-0.tmp", "a.bin.1.part-1.tmp", "b.bin.2.part-0.tmp", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	removed, err := CleanCache(dir, "a.bin.")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.FileExists(t, filepath.Join(dir, "b.bin.2.part-0.tmp"))

	removed, err = CleanCache(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	require.NoError(t, os.Remove(filepath.Join(dir, "notes.txt")))
	_, err = CleanCache(dir, "")
	require.NoError(t, err)
	assert.NoDirExists(t, dir)

	removed, err = CleanCache(dir, "")
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestClientSetsHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer ts.Close()

	client := NewRawstHTTPClient(HTTPClientConfig{
		Headers: map[string]string{"Authorization": "Bearer abc", "range": "bytes=0-0"},
	})
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=5-9")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, ToolUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "bytes=5-9", got.Get("Range"))
}

func TestRandomUserAgent(t *testing.T) {
	client := NewRawstHTTPClient(HTTPClientConfig{UserAgent: RandomUserAgent})
	assert.Contains(t, userAgents, client.config.UserAgent)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug", zerolog.WarnLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("", zerolog.WarnLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("loud", zerolog.WarnLevel))
}
