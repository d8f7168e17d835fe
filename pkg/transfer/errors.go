package transfer

import (
	"errors"
	"fmt"
)

// ErrConcurrentRead is returned when a read is attempted while another read
// on the same ChunkReader has not returned yet.
var ErrConcurrentRead = errors.New("concurrent read on chunk reader")

// SourceReadError reports a failed chunk fetch. The reader's offset is left
// at Offset so the same range is fetched again on the next read.
type SourceReadError struct {
	Offset int64
	End    int64
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("chunk fetch [%d, %d) failed: %v", e.Offset, e.End, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}
