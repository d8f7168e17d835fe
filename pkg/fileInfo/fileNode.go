package fileInfo

import (
	"errors"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMimeType = "application/octet-stream"

var ErrIsDir = errors.New("directories cannot be sent, archive them first")

// FileNode describes a single file offered to a peer.
type FileNode struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// CreateNode stats path and fills in the MIME type and SHA-256 checksum.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	if info.IsDir() {
		return FileNode{}, ErrIsDir
	}
	node := FileNode{
		Name: info.Name(),
		Size: info.Size(),
		Path: path,
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		node.MimeType = defaultMimeType
	} else {
		node.MimeType = mime.String()
	}
	if _, err := node.CalcChecksum(); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

// DetectMimeType sniffs the MIME type of an in-memory payload.
func DetectMimeType(data []byte) string {
	if len(data) == 0 {
		return defaultMimeType
	}
	return mimetype.Detect(data).String()
}
