// Package workbench coordinates the virtual tree, the build pipeline, and
// persistence behind one service the API and tool layers share.
package workbench

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/builder"
	"github.com/starford/sunna/internal/preview"
	"github.com/starford/sunna/internal/store"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
)

// Op names for file operations issued by the AI/tool layer.
const (
	OpCreate = "create"
	OpEdit   = "edit"
	OpRename = "rename"
	OpDelete = "delete"
)

// FileOp is one file operation as issued by the tool layer. The service
// applies it without interpreting why it was issued.
type FileOp struct {
	Op      string `json:"op"`
	Path    string `json:"path"`
	NewPath string `json:"new_path,omitempty"`
	Content string `json:"content,omitempty"`
}

// EventFunc receives file change notifications (created, updated, renamed,
// deleted) after a mutation has been applied.
type EventFunc func(kind, path string)

// Service owns one project: its tree, transpile cache, build coordinator,
// and persisted snapshot.
type Service struct {
	projectID string
	name      string
	tree      *vfs.Tree
	cache     *transpile.Cache
	coord     *builder.Coordinator
	db        store.ProjectStore
	logger    *slog.Logger
	onChange  EventFunc
}

// NewService wires a service. db may be nil to run without persistence;
// onChange may be nil.
func NewService(projectID, name string, tree *vfs.Tree, cache *transpile.Cache, coord *builder.Coordinator, db store.ProjectStore, logger *slog.Logger, onChange EventFunc) *Service {
	if onChange == nil {
		onChange = func(string, string) {}
	}
	return &Service{
		projectID: projectID,
		name:      name,
		tree:      tree,
		cache:     cache,
		coord:     coord,
		db:        db,
		logger:    logger,
		onChange:  onChange,
	}
}

// LoadPersisted rehydrates the tree from the stored snapshot, if any, and
// kicks off an initial build when files exist.
func (s *Service) LoadPersisted(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	snap, err := s.db.LoadSnapshot(s.projectID)
	if err != nil {
		return fmt.Errorf("workbench: load snapshot: %w", err)
	}
	if len(snap) == 0 {
		return nil
	}
	if err := s.tree.Restore(snap); err != nil {
		return fmt.Errorf("workbench: restore snapshot: %w", err)
	}
	s.logger.Info("workbench: restored project",
		slog.String("project", s.projectID),
		slog.Int("files", len(snap)))
	s.coord.Request(ctx)
	return nil
}

// Apply runs one file operation through the tree, persists the result, and
// triggers a rebuild. Tree errors are returned synchronously with no
// mutation applied.
func (s *Service) Apply(ctx context.Context, op FileOp) error {
	var kind string
	var err error
	switch op.Op {
	case OpCreate:
		kind = "created"
		err = s.tree.CreateFile(op.Path, op.Content)
	case OpEdit:
		kind = "updated"
		err = s.tree.WriteFile(op.Path, op.Content)
	case OpRename:
		kind = "renamed"
		err = s.rename(op.Path, op.NewPath)
	case OpDelete:
		kind = "deleted"
		err = s.deletePath(op.Path)
	default:
		return &apperr.PathError{Path: op.Path, Reason: fmt.Sprintf("unknown op %q", op.Op)}
	}
	if err != nil {
		return err
	}

	s.persist()
	s.onChange(kind, op.Path)
	s.coord.Request(ctx)
	return nil
}

func (s *Service) rename(oldPath, newPath string) error {
	n, err := s.tree.Stat(oldPath)
	if err != nil {
		return err
	}
	if err := s.tree.Rename(oldPath, newPath); err != nil {
		return err
	}
	if n.Kind == vfs.KindDir {
		s.cache.InvalidatePrefix(n.Path)
	} else {
		s.cache.Invalidate(n.Path)
	}
	return nil
}

func (s *Service) deletePath(path string) error {
	n, err := s.tree.Stat(path)
	if err != nil {
		return err
	}
	if n.Kind == vfs.KindDir {
		if err := s.tree.DeleteDirectory(path, true); err != nil {
			return err
		}
		s.cache.InvalidatePrefix(n.Path)
		return nil
	}
	if err := s.tree.DeleteFile(path); err != nil {
		return err
	}
	s.cache.Invalidate(n.Path)
	return nil
}

// persist writes the current snapshot. Persistence failures are logged,
// not surfaced: the in-memory tree stays the source of truth.
func (s *Service) persist() {
	if s.db == nil {
		return
	}
	if err := s.db.SaveSnapshot(s.projectID, s.name, s.tree.Snapshot()); err != nil {
		s.logger.Warn("workbench: persist failed", slog.String("error", err.Error()))
	}
}

// ReadFile returns the content of a file.
func (s *Service) ReadFile(path string) (string, error) {
	return s.tree.ReadFile(path)
}

// Stat returns the node at path.
func (s *Service) Stat(path string) (vfs.FileNode, error) {
	return s.tree.Stat(path)
}

// List returns the children of a directory.
func (s *Service) List(dir string) ([]vfs.FileNode, error) {
	return s.tree.List(dir)
}

// Files returns every file in the project.
func (s *Service) Files() []vfs.FileNode {
	return s.tree.Files()
}

// TreeVersion returns the tree's current version counter.
func (s *Service) TreeVersion() uint64 {
	return s.tree.Version()
}

// Snapshot exports the flat path-to-content map.
func (s *Service) Snapshot() map[string]string {
	return s.tree.Snapshot()
}

// Import replaces the whole tree from a snapshot, persists it, and
// rebuilds.
func (s *Service) Import(ctx context.Context, snapshot map[string]string) error {
	if err := s.tree.Restore(snapshot); err != nil {
		return err
	}
	s.persist()
	s.onChange("updated", vfs.Root)
	s.coord.Request(ctx)
	return nil
}

// AppendMessage stores one chat message alongside the project.
func (s *Service) AppendMessage(role, content string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("workbench: no store configured")
	}
	return s.db.AppendMessage(s.projectID, role, content)
}

// Messages returns the project's chat messages.
func (s *Service) Messages() ([]store.Message, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.Messages(s.projectID)
}

// Rebuild requests a build without a mutation, e.g. after changing the
// preview entry.
func (s *Service) Rebuild(ctx context.Context) uint64 {
	return s.coord.Request(ctx)
}

// PreviewStatus returns the coordinator status.
func (s *Service) PreviewStatus() builder.Status {
	return s.coord.Status()
}

// PreviewSession returns the currently published session, or an error when
// none has been built yet.
func (s *Service) PreviewSession() (*preview.Session, error) {
	if sess := s.coord.Session(); sess != nil {
		return sess, nil
	}
	return nil, apperr.ErrNotFound
}
