package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-stamper/internal/config"
	"github.com/a3tai/mcp-pdf-stamper/internal/descriptions"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamp"
	"github.com/a3tai/mcp-pdf-stamper/internal/workspace"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *stamp.Service
	files     *workspace.Files
	mcpServer *server.MCPServer
	logger    *log.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *stamp.Service, files *workspace.Files, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if files == nil {
		return nil, fmt.Errorf("workspace cannot be nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed
	)

	s := &Server{
		config:    cfg,
		service:   service,
		files:     files,
		mcpServer: mcpServer,
		logger:    logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pointProperties := map[string]any{
		"x": map[string]any{"type": "number"},
		"y": map[string]any{"type": "number"},
	}
	pointSchema := map[string]any{
		"type":       "object",
		"properties": pointProperties,
		"required":   []string{"x", "y"},
	}
	rectProperties := map[string]any{
		"left":   map[string]any{"type": "number"},
		"top":    map[string]any{"type": "number"},
		"width":  map[string]any{"type": "number"},
		"height": map[string]any{"type": "number"},
	}

	fieldCreateTool := mcp.NewTool(
		"field_create",
		mcp.WithDescription(descriptions.GetToolDescription("field_create")),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Field type"),
			mcp.Enum("signature", "text", "image", "date", "choice"),
		),
		mcp.WithNumber("drop_x", mcp.Required(), mcp.Description("Drop point x in preview pixels")),
		mcp.WithNumber("drop_y", mcp.Required(), mcp.Description("Drop point y in preview pixels")),
		mcp.WithNumber("container_width", mcp.Required(), mcp.Description("Preview width in pixels")),
		mcp.WithNumber("container_height", mcp.Required(), mcp.Description("Preview height in pixels")),
		mcp.WithString("document_id", mcp.Description("Document to add the field to (a new one is created if empty)")),
		mcp.WithNumber("page_width", mcp.Description("Page width in points for a new document")),
		mcp.WithNumber("page_height", mcp.Description("Page height in points for a new document")),
	)
	s.mcpServer.AddTool(fieldCreateTool, s.handleFieldCreate)

	fieldDragTool := mcp.NewTool(
		"field_drag",
		mcp.WithDescription(descriptions.GetToolDescription("field_drag")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID")),
		mcp.WithObject("grab", mcp.Required(), mcp.Description("Pointer position where the drag started"),
			mcp.Properties(pointProperties)),
		mcp.WithArray("path", mcp.Required(), mcp.Description("Pointer positions in order"), mcp.Items(pointSchema)),
		mcp.WithObject("container", mcp.Required(), mcp.Description("Preview rectangle in pixels"),
			mcp.Properties(rectProperties)),
	)
	s.mcpServer.AddTool(fieldDragTool, s.handleFieldDrag)

	fieldResizeTool := mcp.NewTool(
		"field_resize",
		mcp.WithDescription(descriptions.GetToolDescription("field_resize")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID")),
		mcp.WithObject("field_origin", mcp.Required(), mcp.Description("Field top-left corner in pixels"),
			mcp.Properties(pointProperties)),
		mcp.WithArray("path", mcp.Required(), mcp.Description("Pointer positions in order"), mcp.Items(pointSchema)),
		mcp.WithObject("container", mcp.Required(), mcp.Description("Preview rectangle in pixels"),
			mcp.Properties(rectProperties)),
	)
	s.mcpServer.AddTool(fieldResizeTool, s.handleFieldResize)

	fieldEditTool := mcp.NewTool(
		"field_edit",
		mcp.WithDescription(descriptions.GetToolDescription("field_edit")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID")),
		mcp.WithString("value", mcp.Description("New value")),
		mcp.WithBoolean("clear", mcp.Description("Reset the field to unset")),
		mcp.WithBoolean("cancel", mcp.Description("Leave editing without changing the value")),
	)
	s.mcpServer.AddTool(fieldEditTool, s.handleFieldEdit)

	fieldClickTool := mcp.NewTool(
		"field_click",
		mcp.WithDescription(descriptions.GetToolDescription("field_click")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID")),
		mcp.WithString("signature", mcp.Description("Captured signature as a data:image/... URI")),
	)
	s.mcpServer.AddTool(fieldClickTool, s.handleFieldClick)

	fieldRemoveTool := mcp.NewTool(
		"field_remove",
		mcp.WithDescription(descriptions.GetToolDescription("field_remove")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field ID")),
	)
	s.mcpServer.AddTool(fieldRemoveTool, s.handleFieldRemove)

	fieldListTool := mcp.NewTool(
		"field_list",
		mcp.WithDescription(descriptions.GetToolDescription("field_list")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
	)
	s.mcpServer.AddTool(fieldListTool, s.handleFieldList)

	documentDeleteTool := mcp.NewTool(
		"document_delete",
		mcp.WithDescription(descriptions.GetToolDescription("document_delete")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
	)
	s.mcpServer.AddTool(documentDeleteTool, s.handleDocumentDelete)

	renderFieldsTool := mcp.NewTool(
		"render_fields",
		mcp.WithDescription(descriptions.GetToolDescription("render_fields")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("base_path", mcp.Description("One-page PDF to stamp onto (relative to the workspace directory)")),
		mcp.WithString("output_path", mcp.Description("Where to write the rendered PDF (returned inline if empty)")),
	)
	s.mcpServer.AddTool(renderFieldsTool, s.handleRenderFields)

	stamperInfoTool := mcp.NewTool(
		"stamper_info",
		mcp.WithDescription(descriptions.GetToolDescription("stamper_info")),
	)
	s.mcpServer.AddTool(stamperInfoTool, s.handleStamperInfo)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx, os.Stdin, os.Stdout)
}

// runStdioMode serves MCP over the given streams until ctx is canceled or
// the input closes
func (s *Server) runStdioMode(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Debug("starting PDF stamper in stdio mode", "dir", s.files.Dir(), "store", s.config.Store)

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return ctx.Err()
}

// runServerMode serves the HTTP API and the SSE transport until ctx is canceled
func (s *Server) runServerMode(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting PDF stamper in server mode", "addr", srv.Addr, "store", s.config.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		s.logger.Info("server stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	}
}
