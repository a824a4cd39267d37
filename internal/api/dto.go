package api

import (
	"github.com/starford/sunna/internal/store"
	"github.com/starford/sunna/internal/vfs"
	"github.com/starford/sunna/internal/workbench"
)

// CreateFileRequest is the request body for creating a file.
type CreateFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateFileRequest is the request body for editing a file.
type UpdateFileRequest struct {
	Content string `json:"content"`
}

// RenameRequest is the request body for renaming a file or directory.
type RenameRequest struct {
	Path    string `json:"path"`
	NewPath string `json:"new_path"`
}

// FileOpRequest is a file operation in the tool-layer shape, applied as-is.
type FileOpRequest = workbench.FileOp

// FileDetail is the full representation of one file.
type FileDetail struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Version  uint64 `json:"tree_version"`
}

// TreeResponse wraps a directory listing.
type TreeResponse struct {
	Dir     string         `json:"dir"`
	Entries []vfs.FileNode `json:"entries"`
}

// SnapshotResponse wraps the serializable project snapshot.
type SnapshotResponse struct {
	Files map[string]string `json:"files"`
}

// MessageRequest is the request body for appending a chat message.
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesResponse wraps the project's chat messages.
type MessagesResponse struct {
	Messages []store.Message `json:"messages"`
}
