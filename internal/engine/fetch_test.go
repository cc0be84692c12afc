package engine

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rawst/internal/utils"
)

const mockURL = "http://mock.example/data.bin"

func mockClient(t *testing.T) (*httpmock.MockTransport, utils.HTTPDoer) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	return transport, utils.NewRawstHTTPClient(utils.HTTPClientConfig{Transport: transport})
}

func TestProbeStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		want      error
	}{
		{"bad request", httpmock.NewStringResponder(http.StatusBadRequest, ""), ErrBadRequest},
		{"unauthorized", httpmock.NewStringResponder(http.StatusUnauthorized, ""), ErrUnauthorized},
		{"forbidden", httpmock.NewStringResponder(http.StatusForbidden, ""), ErrForbidden},
		{"not found", httpmock.NewStringResponder(http.StatusNotFound, ""), ErrNotFound},
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, ""), ErrInternalServerError},
		{"unavailable", httpmock.NewStringResponder(http.StatusServiceUnavailable, ""), ErrUnknownStatus},
		{"transport", httpmock.NewErrorResponder(errors.New("connection refused")), ErrUnreachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport, client := mockClient(t)
			transport.RegisterResponder(http.MethodHead, mockURL, tc.responder)
			_, err := Probe(context.Background(), client, mockURL)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, transport.GetTotalCallCount())
		})
	}
}

func TestFetchStatusError(t *testing.T) {
	transport, client := mockClient(t)
	transport.RegisterResponder(http.MethodGet, mockURL, httpmock.NewStringResponder(http.StatusForbidden, "denied"))
	task := &Task{
		Locator:  mockURL,
		Filename: filepath.Join(t.TempDir(), "data.bin"),
		Threads:  1,
		Headers:  http.Header{"Content-Length": {"10"}, "Accept-Ranges": {"bytes"}},
		Layout:   SingleChunk{Chunk: NewChunk(0, 9)},
	}
	err := NewFetcher(client, t.TempDir()).Fetch(context.Background(), task)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFetchRejectsIgnoredRange(t *testing.T) {
	transport, client := mockClient(t)
	transport.RegisterResponder(http.MethodGet, mockURL, httpmock.NewBytesResponder(http.StatusOK, make([]byte, 100)))
	task := &Task{
		Locator:   mockURL,
		Filename:  filepath.Join(t.TempDir(), "data.bin"),
		Threads:   2,
		Headers:   http.Header{"Content-Length": {"100"}, "Accept-Ranges": {"bytes"}},
		CreatedAt: time.Now(),
	}
	ranges, err := Partition(100, 2)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)

	cacheDir := t.TempDir()
	err = NewFetcher(client, cacheDir).Fetch(context.Background(), task)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Zero(t, task.TotalDownloaded.Load())
}

func TestFetchAcceptsWholeBodyForFullRange(t *testing.T) {
	transport, client := mockClient(t)
	body := []byte("0123456789")
	transport.RegisterResponder(http.MethodGet, mockURL, httpmock.NewBytesResponder(http.StatusOK, body))
	task := &Task{
		Locator:  mockURL,
		Filename: filepath.Join(t.TempDir(), "data.bin"),
		Threads:  1,
		Headers:  http.Header{"Content-Length": {"10"}, "Accept-Ranges": {"bytes"}},
		Layout:   SingleChunk{Chunk: NewChunk(0, 9)},
	}
	require.NoError(t, NewFetcher(client, t.TempDir()).Fetch(context.Background(), task))
	got, err := os.ReadFile(task.Filename)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchShortBodyIsMismatch(t *testing.T) {
	transport, client := mockClient(t)
	transport.RegisterResponder(http.MethodGet, mockURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(http.StatusPartialContent, []byte("01234"))
		resp.Header.Set("Content-Range", "bytes 0-9/10")
		return resp, nil
	})
	task := &Task{
		Locator:  mockURL,
		Filename: filepath.Join(t.TempDir(), "data.bin"),
		Threads:  1,
		Headers:  http.Header{"Content-Length": {"10"}, "Accept-Ranges": {"bytes"}},
		Layout:   SingleChunk{Chunk: NewChunk(0, 9)},
	}
	err := NewFetcher(client, t.TempDir()).Fetch(context.Background(), task)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestFetchRejectsShiftedRange(t *testing.T) {
	transport, client := mockClient(t)
	transport.RegisterResponder(http.MethodGet, mockURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(http.StatusPartialContent, make([]byte, 50))
		resp.Header.Set("Content-Range", "bytes 10-59/100")
		return resp, nil
	})
	task := &Task{
		Locator:   mockURL,
		Filename:  filepath.Join(t.TempDir(), "data.bin"),
		Threads:   2,
		Headers:   http.Header{"Content-Length": {"100"}, "Accept-Ranges": {"bytes"}},
		CreatedAt: time.Now(),
	}
	ranges, err := Partition(100, 2)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)

	err = NewFetcher(client, t.TempDir()).Fetch(context.Background(), task)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Zero(t, task.Chunks()[0].Downloaded.Load())
}

func TestContentRangeStart(t *testing.T) {
	tests := []struct {
		header string
		start  int64
		ok     bool
	}{
		{"bytes 0-9/10", 0, true},
		{"bytes 334-667/1000", 334, true},
		{"bytes 5-9/*", 5, true},
		{"bytes */1000", 0, false},
		{"bytes 9-5/10", 9, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		start, ok := contentRangeStart(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		if tc.ok {
			assert.Equal(t, tc.start, start, tc.header)
		}
	}
}

func TestFetchSkipsCompleteChunks(t *testing.T) {
	transport, client := mockClient(t)
	task := &Task{
		Locator:   mockURL,
		Filename:  filepath.Join(t.TempDir(), "data.bin"),
		Threads:   2,
		Headers:   http.Header{"Content-Length": {"100"}, "Accept-Ranges": {"bytes"}},
		CreatedAt: time.Now(),
	}
	ranges, err := Partition(100, 2)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)
	for _, c := range task.Chunks() {
		c.Downloaded.Store(c.Span())
	}
	require.NoError(t, NewFetcher(client, t.TempDir()).Fetch(context.Background(), task))
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestMergeOrdersChunks(t *testing.T) {
	cacheDir := t.TempDir()
	task := &Task{
		Locator:   mockURL,
		Filename:  filepath.Join(t.TempDir(), "out", "data.bin"),
		Threads:   4,
		Headers:   http.Header{"Content-Length": {"1000"}},
		CreatedAt: time.Now(),
	}
	ranges, err := Partition(1000, 4)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)

	var want []byte
	// write artifacts in reverse so directory order cannot help
	for i := len(ranges) - 1; i >= 0; i-- {
		c := task.Chunks()[i]
		p, err := CachePath(cacheDir, task, i)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{byte(i)}, int(c.Span())), 0644))
		c.Downloaded.Store(c.Span())
	}
	for i, r := range ranges {
		want = append(want, bytes.Repeat([]byte{byte(i)}, int(r.Size()))...)
	}

	require.NoError(t, Merge(cacheDir, task))
	got, err := os.ReadFile(task.Filename)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMergeRequiresCompleteChunks(t *testing.T) {
	cacheDir := t.TempDir()
	task := &Task{
		Locator:   mockURL,
		Filename:  filepath.Join(t.TempDir(), "data.bin"),
		Headers:   http.Header{"Content-Length": {"100"}},
		CreatedAt: time.Now(),
	}
	ranges, err := Partition(100, 2)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)
	chunks := task.Chunks()
	for i, c := range chunks {
		p, err := CachePath(cacheDir, task, i)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p, make([]byte, c.Span()), 0644))
	}
	chunks[0].Downloaded.Store(chunks[0].Span())
	chunks[1].Downloaded.Store(chunks[1].Span() - 1)

	assert.ErrorIs(t, Merge(cacheDir, task), ErrMismatch)
	assert.NoFileExists(t, task.Filename)

	chunks[1].Downloaded.Store(chunks[1].Span())
	p, err := CachePath(cacheDir, task, 1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, make([]byte, 3), 0644))
	assert.ErrorIs(t, Merge(cacheDir, task), ErrMismatch)
}

func TestMergeIgnoresSequentialLayouts(t *testing.T) {
	task := &Task{Layout: NoChunks{}}
	assert.NoError(t, Merge(t.TempDir(), task))
	task.Layout = SingleChunk{Chunk: NewChunk(0, 9)}
	assert.NoError(t, Merge(t.TempDir(), task))
	task.Layout = nil
	assert.ErrorIs(t, Merge(t.TempDir(), task), ErrInvalidArgs)
}

func TestCacheKeyStable(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	a := &Task{Locator: mockURL, Filename: "/tmp/x/data.bin", CreatedAt: created}
	b := &Task{Locator: mockURL, Filename: "/elsewhere/data.bin", CreatedAt: created.In(time.FixedZone("X", 3600))}
	pa, err := CachePath("/cache", a, 2)
	require.NoError(t, err)
	pb, err := CachePath("/cache", b, 2)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Regexp(t, `^/cache/data\.bin\.[0-9a-f]{16}\.part-2\.tmp$`, pa)

	c := &Task{Locator: mockURL, Filename: "data.bin", CreatedAt: created.Add(time.Nanosecond)}
	pc, err := CachePath("/cache", c, 2)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pc)
}

func TestTaskCounters(t *testing.T) {
	task := &Task{Headers: http.Header{"Content-Length": {strconv.Itoa(1000)}}}
	ranges, err := Partition(1000, 3)
	require.NoError(t, err)
	task.Layout = layoutFromRanges(ranges)
	assert.EqualValues(t, 1000, task.Remaining())

	task.Chunks()[1].Downloaded.Store(100)
	assert.EqualValues(t, 900, task.Remaining())
	assert.EqualValues(t, 100, task.ChunksDownloaded())

	task.Layout = NoChunks{}
	assert.EqualValues(t, 1000, task.Remaining())
	task.Headers = http.Header{}
	assert.EqualValues(t, -1, task.Remaining())
}
