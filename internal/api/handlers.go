package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/workbench"
)

// Handler holds API route handlers.
type Handler struct {
	svc *workbench.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workbench.Service) *Handler {
	return &Handler{svc: svc}
}

// filePath extracts the file path from the URL (everything after /api/files/).
// Supports encoded slashes from OpenAPI clients (e.g. src%2FApp.tsx).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return "/" + decoded
}

func writeAppErr(w http.ResponseWriter, err error, logMsg string, attrs ...slog.Attr) {
	var pathErr *apperr.PathError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.As(err, &pathErr):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		args := make([]any, 0, len(attrs)+1)
		for _, a := range attrs {
			args = append(args, a)
		}
		args = append(args, slog.String("error", err.Error()))
		slog.Error(logMsg, args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Tree handles GET /api/tree.
//
//	@Summary		List entries of a directory in the project tree
//	@Tags			files
//	@Produce		json
//	@Param			dir	query		string	false	"Directory path, defaults to /"
//	@Success		200	{object}	TreeResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = "/"
	}
	entries, err := h.svc.List(dir)
	if err != nil {
		writeAppErr(w, err, "list tree failed", slog.String("dir", dir))
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Dir: dir, Entries: entries})
}

// ListFiles handles GET /api/files.
//
//	@Summary		List every file in the project
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"files": h.svc.Files(),
	})
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Get a single file by path
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	FileDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	content, err := h.svc.ReadFile(path)
	if err != nil {
		writeAppErr(w, err, "get file failed", slog.String("path", path))
		return
	}
	node, err := h.svc.Stat(path)
	if err != nil {
		writeAppErr(w, err, "stat file failed", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, FileDetail{
		Path:     node.Path,
		Content:  content,
		Language: node.Language,
		Version:  h.svc.TreeVersion(),
	})
}

// CreateFile handles POST /api/files.
//
//	@Summary		Create a new file, materializing parent directories
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFileRequest	true	"File to create"
//	@Success		201		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [post]
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	op := workbench.FileOp{Op: workbench.OpCreate, Path: req.Path, Content: req.Content}
	if err := h.svc.Apply(r.Context(), op); err != nil {
		writeAppErr(w, err, "create file failed", slog.String("path", req.Path))
		return
	}
	node, err := h.svc.Stat(req.Path)
	if err != nil {
		writeAppErr(w, err, "stat file failed", slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, FileDetail{
		Path:     node.Path,
		Content:  req.Content,
		Language: node.Language,
		Version:  h.svc.TreeVersion(),
	})
}

// UpdateFile handles PUT /api/files/*.
//
//	@Summary		Write a file's content, creating it if missing
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"File path"
//	@Param			body	body		UpdateFileRequest	true	"Updated content"
//	@Success		200		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [put]
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	op := workbench.FileOp{Op: workbench.OpEdit, Path: path, Content: req.Content}
	if err := h.svc.Apply(r.Context(), op); err != nil {
		writeAppErr(w, err, "update file failed", slog.String("path", path))
		return
	}
	node, err := h.svc.Stat(path)
	if err != nil {
		writeAppErr(w, err, "stat file failed", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, FileDetail{
		Path:     node.Path,
		Content:  req.Content,
		Language: node.Language,
		Version:  h.svc.TreeVersion(),
	})
}

// DeleteFile handles DELETE /api/files/*.
//
//	@Summary		Delete a file or directory
//	@Tags			files
//	@Param			path	path	string	true	"File path"
//	@Success		204		"Deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	op := workbench.FileOp{Op: workbench.OpDelete, Path: path}
	if err := h.svc.Apply(r.Context(), op); err != nil {
		writeAppErr(w, err, "delete failed", slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles POST /api/rename.
//
//	@Summary		Rename or move a file or directory
//	@Tags			files
//	@Accept			json
//	@Success		204	"Renamed"
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and new_path are required"))
		return
	}
	op := workbench.FileOp{Op: workbench.OpRename, Path: req.Path, NewPath: req.NewPath}
	if err := h.svc.Apply(r.Context(), op); err != nil {
		writeAppErr(w, err, "rename failed", slog.String("path", req.Path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyOps handles POST /api/ops.
//
//	@Summary		Apply a batch of file operations in order
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ops [post]
func (h *Handler) ApplyOps(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	var req struct {
		Ops []FileOpRequest `json:"ops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Ops) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("ops is required"))
		return
	}
	applied := 0
	for _, op := range req.Ops {
		if err := h.svc.Apply(r.Context(), op); err != nil {
			writeAppErr(w, err, "apply op failed",
				slog.String("op", op.Op), slog.String("path", op.Path))
			return
		}
		applied++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied":      applied,
		"tree_version": h.svc.TreeVersion(),
	})
}

// GetSnapshot handles GET /api/snapshot.
//
//	@Summary		Export the project as a path-to-content map
//	@Tags			snapshot
//	@Produce		json
//	@Success		200	{object}	SnapshotResponse
//	@Security		BearerAuth
//	@Router			/snapshot [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SnapshotResponse{Files: h.svc.Snapshot()})
}

// PutSnapshot handles PUT /api/snapshot.
//
//	@Summary		Replace the whole project from a snapshot
//	@Tags			snapshot
//	@Accept			json
//	@Success		204	"Imported"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshot [put]
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
	var req SnapshotResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.Import(r.Context(), req.Files); err != nil {
		writeAppErr(w, err, "snapshot import failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/messages.
//
//	@Summary		List the project's chat transcript
//	@Tags			messages
//	@Produce		json
//	@Success		200	{object}	MessagesResponse
//	@Security		BearerAuth
//	@Router			/messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Messages()
	if err != nil {
		slog.Error("list messages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

// AppendMessage handles POST /api/messages.
//
//	@Summary		Append a chat message to the transcript
//	@Tags			messages
//	@Accept			json
//	@Success		201	"Appended"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages [post]
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Role == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("role and content are required"))
		return
	}
	if _, err := h.svc.AppendMessage(req.Role, req.Content); err != nil {
		slog.Error("append message failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Preview handles GET /api/preview.
//
//	@Summary		Serve the current preview document
//	@Tags			preview
//	@Produce		html
//	@Success		200	{string}	string	"Preview HTML"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.PreviewSession()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("no preview built yet"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(session.Markup))
}

// PreviewStatus handles GET /api/preview/status.
//
//	@Summary		Get the build coordinator's current state and diagnostics
//	@Tags			preview
//	@Produce		json
//	@Success		200	{object}	builder.Status
//	@Security		BearerAuth
//	@Router			/preview/status [get]
func (h *Handler) PreviewStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.PreviewStatus())
}

// Rebuild handles POST /api/preview/rebuild.
//
//	@Summary		Force a fresh preview build
//	@Tags			preview
//	@Success		202	"Build requested"
//	@Security		BearerAuth
//	@Router			/preview/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	h.svc.Rebuild(r.Context())
	w.WriteHeader(http.StatusAccepted)
}
