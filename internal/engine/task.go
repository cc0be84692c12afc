package engine

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Chunk is one inclusive byte range of the resource. Start is where the
// range was designed to begin; Offset is where the next request begins,
// advanced past bytes already on disk when a transfer is resumed.
type Chunk struct {
	Start      int64
	Offset     int64
	End        int64
	Downloaded atomic.Int64
}

func NewChunk(start, end int64) *Chunk {
	return &Chunk{Start: start, Offset: start, End: end}
}

func (c *Chunk) Span() int64 {
	return c.End - c.Start + 1
}

func (c *Chunk) Complete() bool {
	return c.Downloaded.Load() == c.Span()
}

func (c *Chunk) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", c.Offset, c.End)
}

// resumed reports whether the next request continues a partial range.
func (c *Chunk) resumed() bool {
	return c.Offset > c.Start
}

// ChunkLayout is one of NoChunks, SingleChunk or MultipleChunks.
type ChunkLayout interface {
	isLayout()
	String() string
}

// NoChunks streams the whole body in one request without a Range header.
type NoChunks struct{}

// SingleChunk streams one ranged request directly into the destination.
type SingleChunk struct {
	Chunk *Chunk
}

// MultipleChunks fetches each chunk concurrently into its own cache artifact.
type MultipleChunks struct {
	Chunks []*Chunk
}

func (NoChunks) isLayout()       {}
func (SingleChunk) isLayout()    {}
func (MultipleChunks) isLayout() {}

func (NoChunks) String() string         { return "none" }
func (SingleChunk) String() string      { return "single" }
func (l MultipleChunks) String() string { return fmt.Sprintf("multiple(%d)", len(l.Chunks)) }

func unknownLayout(op string, l ChunkLayout) error {
	return newError(KindInvalidArgs, op, fmt.Errorf("unknown chunk layout %T", l))
}

// Task is a single transfer from Locator to Filename.
type Task struct {
	ID              string
	Locator         string
	Filename        string
	Threads         int
	TotalDownloaded atomic.Int64
	Layout          ChunkLayout
	Headers         http.Header
	CreatedAt       time.Time

	// ProgressFunc, when set, is called after every written segment with
	// the task counter and the content length (0 when unknown).
	ProgressFunc func(downloaded, total int64)
}

func (t *Task) ContentLength() int64 {
	return ContentLength(t.Headers)
}

func (t *Task) AllowsPartialContent() bool {
	return AllowsPartialContent(t.Headers)
}

// Chunks returns the chunks of the active layout, nil for NoChunks.
func (t *Task) Chunks() []*Chunk {
	switch l := t.Layout.(type) {
	case SingleChunk:
		return []*Chunk{l.Chunk}
	case MultipleChunks:
		return l.Chunks
	}
	return nil
}

// ChunksDownloaded sums the chunk counters; while only chunked fetches
// run it equals TotalDownloaded.
func (t *Task) ChunksDownloaded() int64 {
	var sum int64
	for _, c := range t.Chunks() {
		sum += c.Downloaded.Load()
	}
	return sum
}

// Remaining is the number of bytes still to request, or -1 when the size is unknown.
func (t *Task) Remaining() int64 {
	switch t.Layout.(type) {
	case NoChunks, nil:
		if n := t.ContentLength(); n > 0 {
			return n - t.TotalDownloaded.Load()
		}
		return -1
	}
	var rem int64
	for _, c := range t.Chunks() {
		rem += c.Span() - c.Downloaded.Load()
	}
	return rem
}

func (t *Task) addProgress(n int64) {
	total := t.TotalDownloaded.Add(n)
	if t.ProgressFunc != nil {
		t.ProgressFunc(total, t.ContentLength())
	}
}

// layoutFromRanges builds the layout a fresh task uses for the given ranges.
func layoutFromRanges(ranges []Range) ChunkLayout {
	switch len(ranges) {
	case 0:
		return NoChunks{}
	case 1:
		return SingleChunk{Chunk: NewChunk(ranges[0].Start, ranges[0].End)}
	}
	chunks := make([]*Chunk, len(ranges))
	for i, r := range ranges {
		chunks[i] = NewChunk(r.Start, r.End)
	}
	return MultipleChunks{Chunks: chunks}
}
