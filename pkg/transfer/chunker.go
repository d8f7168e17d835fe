package transfer

import (
	"fmt"
	"io"
	"os"

	"github.com/rescp17/codedrop/pkg/fileInfo"
)

// FetchResult is the completion of one range fetch.
type FetchResult struct {
	Data []byte
	Err  error
}

// ChunkSource is a data provider that only supports asynchronous,
// range-addressed fetches. Fetch returns a channel that delivers exactly one
// result; implementations must buffer it so an abandoned fetch never blocks.
type ChunkSource interface {
	Size() int64
	Fetch(start, end int64) <-chan FetchResult
}

// BytesSource serves an in-memory payload. Its fetches complete before
// Fetch returns.
type BytesSource struct {
	data []byte
}

func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

func (s *BytesSource) Size() int64 {
	return int64(len(s.data))
}

func (s *BytesSource) Fetch(start, end int64) <-chan FetchResult {
	ch := make(chan FetchResult, 1)
	if start < 0 || end > int64(len(s.data)) || start > end {
		ch <- FetchResult{Err: fmt.Errorf("range [%d, %d) out of bounds", start, end)}
		return ch
	}
	ch <- FetchResult{Data: s.data[start:end]}
	return ch
}

// FileSource fetches ranges of a file on disk from a background goroutine.
type FileSource struct {
	file *os.File
	size int64
}

// NewFileSourceFromFileNode opens the file described by node.
func NewFileSourceFromFileNode(node *fileInfo.FileNode) (*FileSource, error) {
	file, err := os.Open(node.Path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fileInfo.ErrIsDir
	}
	return &FileSource{file: file, size: info.Size()}, nil
}

func (s *FileSource) Size() int64 {
	return s.size
}

func (s *FileSource) Fetch(start, end int64) <-chan FetchResult {
	ch := make(chan FetchResult, 1)
	go func() {
		buf := make([]byte, end-start)
		n, err := s.file.ReadAt(buf, start)
		if err == io.EOF && int64(n) == end-start {
			err = nil
		}
		if err != nil {
			ch <- FetchResult{Err: err}
			return
		}
		ch <- FetchResult{Data: buf[:n]}
	}()
	return ch
}

// Checksum hashes the first Size bytes of the open file.
func (s *FileSource) Checksum() (string, error) {
	sum, err := fileInfo.ChecksumReader(io.NewSectionReader(s.file, 0, s.size))
	if err != nil {
		return "", fmt.Errorf("failed to hash source: %w", err)
	}
	return sum, nil
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
