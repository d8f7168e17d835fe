package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescp17/codedrop/internal/util"
	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

var ErrInvalidFileName = errors.New("invalid file name")

// FileReceiver writes received files into an output directory.
type FileReceiver struct {
	outputDir string
}

// NewFileReceiver creates a new file receiver
func NewFileReceiver(outputDir string) *FileReceiver {
	return &FileReceiver{outputDir: outputDir}
}

// sanitizeName keeps only the last path element of a peer-supplied name.
func sanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || clean == ".." || strings.TrimSpace(clean) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return clean, nil
}

// Save writes file under the output directory without overwriting existing
// files, verifies it against checksum when one is given, and returns the
// final path.
func (fr *FileReceiver) Save(file *session.ReceivedFile, checksum string) (string, error) {
	name, err := sanitizeName(file.Name)
	if err != nil {
		return "", err
	}
	if err := util.EnsureDir(fr.outputDir); err != nil {
		return "", fmt.Errorf("failed to prepare output directory: %w", err)
	}

	tmp, err := os.CreateTemp(fr.outputDir, ".codedrop-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := writeAndClose(tmp, file.Data); err != nil {
		fr.cleanup(tmpPath)
		return "", err
	}

	if checksum != "" {
		if err := verifyFileIntegrity(tmpPath, checksum); err != nil {
			fr.cleanup(tmpPath)
			slog.Error("File integrity verification failed", "fileName", name, "error", err)
			return "", err
		}
	}

	outputPath, err := util.UniquePath(fr.outputDir, name)
	if err != nil {
		fr.cleanup(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		fr.cleanup(tmpPath)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	slog.Info("File saved", "fileName", name, "path", outputPath, "size", len(file.Data))
	return outputPath, nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		slog.Warn("Failed to sync file to disk", "error", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// verifyFileIntegrity re-hashes the written file, catching corruption
// between memory and disk.
func verifyFileIntegrity(path, checksum string) error {
	node := &fileInfo.FileNode{Path: path}
	ok, err := node.VerifySHA256(checksum)
	if err != nil {
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	if !ok {
		return wormhole.ErrChecksumMismatch
	}
	return nil
}

func (fr *FileReceiver) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Error("Failed to cleanup partial file", "path", path, "error", err)
	}
}
