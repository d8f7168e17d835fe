package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	start, end int64
	result     chan FetchResult
}

// manualSource hands every fetch to the test, which completes it by writing
// to the call's result channel.
type manualSource struct {
	size   int64
	issued chan fetchCall

	mu    sync.Mutex
	calls int
}

func newManualSource(size int64) *manualSource {
	return &manualSource{size: size, issued: make(chan fetchCall, 16)}
}

func (s *manualSource) Size() int64 { return s.size }

func (s *manualSource) Fetch(start, end int64) <-chan FetchResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	call := fetchCall{start: start, end: end, result: make(chan FetchResult, 1)}
	s.issued <- call
	return call.result
}

func (s *manualSource) waitIssued(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-s.issued:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch issued")
		return fetchCall{}
	}
}

// flakySource fails the first fetch that starts at failAt.
type flakySource struct {
	*BytesSource
	failAt int64
	failed bool
	calls  []int64
}

func (s *flakySource) Fetch(start, end int64) <-chan FetchResult {
	s.calls = append(s.calls, start)
	if start == s.failAt && !s.failed {
		s.failed = true
		ch := make(chan FetchResult, 1)
		ch <- FetchResult{Err: errors.New("disk unplugged")}
		return ch
	}
	return s.BytesSource.Fetch(start, end)
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestChunkReader_ReadSizes(t *testing.T) {
	r := NewChunkReader(NewBytesSource(payload(10)))
	buf := make([]byte, 4)

	var sizes []int
	for {
		n, err := r.Read(buf)
		sizes = append(sizes, n)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, []int{4, 4, 2, 0}, sizes)
	assert.Equal(t, 3, r.Fetches())
}

func TestChunkReader_EmptySourceNeverFetches(t *testing.T) {
	src := newManualSource(0)
	r := NewChunkReader(src)

	n, err := r.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, r.Fetches())
	assert.Equal(t, 0, src.calls)
}

func TestChunkReader_ZeroLengthBuffer(t *testing.T) {
	r := NewChunkReader(NewBytesSource(payload(5)))

	n, err := r.Read(nil)
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
	assert.Equal(t, 0, r.Fetches())
	assert.Equal(t, Cursor{Offset: 0, Total: 5}, r.Cursor())
}

func TestChunkReader_DeliversExactlyTotal(t *testing.T) {
	lengths := []int{0, 1, 7, 64, 1000, 4097}
	bufSizes := []int{1, 3, 4, 64, 4096}

	for _, l := range lengths {
		for _, c := range bufSizes {
			t.Run(fmt.Sprintf("L=%d/C=%d", l, c), func(t *testing.T) {
				data := payload(l)
				r := NewChunkReader(NewBytesSource(data))
				buf := make([]byte, c)

				var got []byte
				last := int64(0)
				for {
					n, err := r.Read(buf)
					got = append(got, buf[:n]...)

					cur := r.Cursor()
					assert.GreaterOrEqual(t, cur.Offset, last, "offset went backwards")
					assert.LessOrEqual(t, cur.Offset, cur.Total, "offset passed the end")
					last = cur.Offset

					if err == io.EOF {
						break
					}
					require.NoError(t, err)
					require.LessOrEqual(t, n, c)
				}

				assert.Equal(t, data, got)
				for i := 0; i < 3; i++ {
					n, err := r.Read(buf)
					assert.Equal(t, 0, n)
					assert.Equal(t, io.EOF, err)
				}
			})
		}
	}
}

func TestChunkReader_ConcurrentReadRejected(t *testing.T) {
	src := newManualSource(8)
	r := NewChunkReader(src)

	type readResult struct {
		n   int
		err error
	}
	first := make(chan readResult, 1)
	buf := make([]byte, 8)
	go func() {
		n, err := r.Read(buf)
		first <- readResult{n, err}
	}()

	call := src.waitIssued(t)
	before := r.Cursor()

	n, err := r.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrConcurrentRead)
	assert.Equal(t, before, r.Cursor())
	assert.Equal(t, 1, r.Fetches())
	assert.True(t, r.Pending())

	call.result <- FetchResult{Data: payload(8)}
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, 8, res.n)
	assert.Equal(t, payload(8), buf)
}

func TestChunkReader_FailureKeepsOffset(t *testing.T) {
	data := payload(12)
	src := &flakySource{BytesSource: NewBytesSource(data), failAt: 4}
	r := NewChunkReader(src)
	buf := make([]byte, 4)

	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	got := append([]byte(nil), buf[:n]...)

	n, err = r.Read(buf)
	assert.Equal(t, 0, n)
	var srcErr *SourceReadError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, int64(4), srcErr.Offset)
	assert.Equal(t, int64(4), r.Cursor().Offset)
	assert.False(t, r.Pending())

	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, data, got)
	assert.Equal(t, []int64{0, 4, 4, 8}, src.calls)
}

func TestChunkReader_ResumesPendingFetch(t *testing.T) {
	src := newManualSource(6)
	r := NewChunkReader(src)
	buf := make([]byte, 6)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.ReadContext(ctx, buf)
		done <- err
	}()

	call := src.waitIssued(t)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, r.Pending())
	assert.Equal(t, int64(0), r.Cursor().Offset)

	call.result <- FetchResult{Data: []byte("abcdef")}

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf[:n]))
	assert.Equal(t, 1, r.Fetches(), "resumed read must not issue a duplicate fetch")
	assert.False(t, r.Pending())

	n, err = r.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestChunkReader_SmallerBufferAfterResume(t *testing.T) {
	src := newManualSource(8)
	r := NewChunkReader(src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.ReadContext(ctx, make([]byte, 8))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	call := src.waitIssued(t)
	assert.Equal(t, int64(0), call.start)
	assert.Equal(t, int64(8), call.end)
	call.result <- FetchResult{Data: []byte("01234567")}

	small := make([]byte, 3)
	n, err := r.Read(small)
	require.NoError(t, err)
	assert.Equal(t, "012", string(small[:n]))
	assert.Equal(t, int64(3), r.Cursor().Offset)

	rest := make([]byte, 8)
	n, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "34567", string(rest[:n]))
	assert.Equal(t, 1, r.Fetches())

	n, err = r.Read(rest)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestChunkReader_EmptyFetchIsSourceError(t *testing.T) {
	src := newManualSource(4)
	r := NewChunkReader(src)

	go func() {
		call := <-src.issued
		call.result <- FetchResult{}
	}()

	_, err := r.Read(make([]byte, 4))
	var srcErr *SourceReadError
	require.ErrorAs(t, err, &srcErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(0), r.Cursor().Offset)
}

func TestChunkReader_FileSource(t *testing.T) {
	data := bytes.Repeat([]byte("wormhole "), 5000)
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, data, 0644))

	node, err := fileInfo.CreateNode(path)
	require.NoError(t, err)
	src, err := NewFileSourceFromFileNode(&node)
	require.NoError(t, err)
	defer src.Close()

	got, err := io.ReadAll(NewChunkReader(src))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileSource_Checksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old!"), 0644))
	node, err := fileInfo.CreateNode(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("new!"), 0644))

	src, err := NewFileSourceFromFileNode(&node)
	require.NoError(t, err)
	defer src.Close()

	sum, err := src.Checksum()
	require.NoError(t, err)
	assert.Equal(t, fileInfo.ChecksumBytes([]byte("new!")), sum)
	assert.NotEqual(t, node.Checksum, sum)
}

func TestNewFileSourceFromFileNode_Directory(t *testing.T) {
	_, err := NewFileSourceFromFileNode(&fileInfo.FileNode{Path: t.TempDir()})
	assert.ErrorIs(t, err, fileInfo.ErrIsDir)
}
