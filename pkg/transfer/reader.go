package transfer

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rescp17/codedrop/pkg/concurrency"
)

// Cursor is the read position of a ChunkReader.
type Cursor struct {
	Offset int64
	Total  int64
}

// Remaining returns the number of bytes not yet delivered.
func (c Cursor) Remaining() int64 {
	return c.Total - c.Offset
}

type pendingFetch struct {
	start, end int64
	result     <-chan FetchResult
}

// ChunkReader presents a ChunkSource as an io.Reader. Each read fetches at
// most len(p) bytes starting at the cursor. A fetch that is still in flight
// when a read gives up (context done) stays recorded, and the next read
// waits on that same fetch instead of issuing another one.
type ChunkReader struct {
	src   ChunkSource
	guard *concurrency.ConcurrencyGuard

	mu      sync.Mutex
	cursor  Cursor
	pending *pendingFetch
	// held are bytes of a completed fetch that did not fit the caller's
	// buffer; they sit right after cursor.Offset.
	held    []byte
	fetches int
}

func NewChunkReader(src ChunkSource) *ChunkReader {
	return &ChunkReader{
		src:    src,
		guard:  concurrency.NewConcurrencyGuard(),
		cursor: Cursor{Total: src.Size()},
	}
}

// Read implements io.Reader.
func (r *ChunkReader) Read(p []byte) (int, error) {
	return r.ReadContext(context.Background(), p)
}

// ReadContext is Read with a bound on how long to wait for a fetch.
func (r *ChunkReader) ReadContext(ctx context.Context, p []byte) (int, error) {
	var (
		n       int
		readErr error
	)
	err := r.guard.Execute(func() error {
		n, readErr = r.read(ctx, p)
		return nil
	})
	if errors.Is(err, concurrency.ErrBusy) {
		return 0, ErrConcurrentRead
	}
	return n, readErr
}

// BoundTo returns an io.Reader whose reads give up when ctx ends.
func (r *ChunkReader) BoundTo(ctx context.Context) io.Reader {
	return &boundReader{ctx: ctx, r: r}
}

type boundReader struct {
	ctx context.Context
	r   *ChunkReader
}

func (b *boundReader) Read(p []byte) (int, error) {
	return b.r.ReadContext(b.ctx, p)
}

func (r *ChunkReader) read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	if len(r.held) > 0 {
		n := copy(p, r.held)
		r.held = r.held[n:]
		r.cursor.Offset += int64(n)
		r.mu.Unlock()
		return n, nil
	}
	if r.pending == nil {
		if r.cursor.Offset >= r.cursor.Total {
			r.mu.Unlock()
			return 0, io.EOF
		}
		start := r.cursor.Offset
		end := min(start+int64(len(p)), r.cursor.Total)
		r.pending = &pendingFetch{start: start, end: end, result: r.src.Fetch(start, end)}
		r.fetches++
	}
	fetch := r.pending
	r.mu.Unlock()

	var res FetchResult
	select {
	case res = <-fetch.result:
	default:
		select {
		case res = <-fetch.result:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete(fetch, p, res)
}

func (r *ChunkReader) complete(fetch *pendingFetch, p []byte, res FetchResult) (int, error) {
	r.pending = nil

	if res.Err != nil {
		return 0, &SourceReadError{Offset: fetch.start, End: fetch.end, Err: res.Err}
	}
	data := res.Data
	if want := fetch.end - fetch.start; int64(len(data)) > want {
		data = data[:want]
	}
	if len(data) == 0 {
		return 0, &SourceReadError{Offset: fetch.start, End: fetch.end, Err: io.ErrUnexpectedEOF}
	}

	n := copy(p, data)
	if n < len(data) {
		r.held = append([]byte(nil), data[n:]...)
	}
	r.cursor.Offset += int64(n)
	return n, nil
}

// Cursor returns a snapshot of the read position.
func (r *ChunkReader) Cursor() Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Pending reports whether a fetch is in flight.
func (r *ChunkReader) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Fetches returns how many fetches have been issued to the source.
func (r *ChunkReader) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}
