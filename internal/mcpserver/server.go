// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes workbench tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sunna/internal/workbench"
)

// Server wraps the MCP server with workbench tools.
type Server struct {
	mcp *server.MCPServer
	svc *workbench.Service
}

// New creates a new MCP server with all workbench tools registered.
func New(svc *workbench.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Sunna",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List every file in the project with its language."),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the full content of a project file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path (e.g. /src/App.tsx)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new file. Fails if the path already exists. "+
			"Parent directories are created automatically. Saving triggers a "+
			"preview rebuild; check preview_status afterwards for diagnostics."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path for the new file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full file content")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write a file's full content, creating it if missing. "+
			"Always send the complete file, not a diff."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full file content")),
	), s.writeFile)

	s.mcp.AddTool(mcp.NewTool("rename_path",
		mcp.WithDescription("Rename or move a file or directory. Moving a directory "+
			"moves everything under it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Current path")),
		mcp.WithString("new_path", mcp.Required(), mcp.Description("Destination path")),
	), s.renamePath)

	s.mcp.AddTool(mcp.NewTool("delete_path",
		mcp.WithDescription("Delete a file, or a directory and everything under it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to delete")),
	), s.deletePath)

	s.mcp.AddTool(mcp.NewTool("preview_status",
		mcp.WithDescription("Get the preview build state. Returns the current state "+
			"(idle, resolving, allocating, ready, error) and any compile or import diagnostics."),
	), s.previewStatus)

	// Resource: the whole project as a path-to-content map.
	s.mcp.AddResource(
		mcp.NewResource("sunna://snapshot", "Project Snapshot",
			mcp.WithResourceDescription("All project files as a JSON path-to-content map."),
			mcp.WithMIMEType("application/json"),
		),
		s.readSnapshotResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files := s.svc.Files()
	if len(files) == 0 {
		return mcp.NewToolResultText("project is empty"), nil
	}
	var lines []string
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("%s (%s)", f.Path, f.Language))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op := workbench.FileOp{Op: workbench.OpCreate, Path: path, Content: content}
	if err := s.svc.Apply(ctx, op); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op := workbench.FileOp{Op: workbench.OpEdit, Path: path, Content: content}
	if err := s.svc.Apply(ctx, op); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("wrote: %s", path)), nil
}

func (s *Server) renamePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newPath, err := req.RequireString("new_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op := workbench.FileOp{Op: workbench.OpRename, Path: path, NewPath: newPath}
	if err := s.svc.Apply(ctx, op); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", path, newPath)), nil
}

func (s *Server) deletePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op := workbench.FileOp{Op: workbench.OpDelete, Path: path}
	if err := s.svc.Apply(ctx, op); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) previewStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.PreviewStatus(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSnapshotResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.svc.Snapshot(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "sunna://snapshot",
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
