package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-stamper/internal/descriptions"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/placement"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamp"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

type fieldCreateArgs struct {
	DocumentID      string  `json:"document_id"`
	Type            string  `json:"type"`
	DropX           float64 `json:"drop_x"`
	DropY           float64 `json:"drop_y"`
	ContainerWidth  float64 `json:"container_width"`
	ContainerHeight float64 `json:"container_height"`
	PageWidth       float64 `json:"page_width"`
	PageHeight      float64 `json:"page_height"`
}

type fieldEditArgs struct {
	DocumentID string  `json:"document_id"`
	FieldID    string  `json:"field_id"`
	Value      *string `json:"value"`
	Clear      bool    `json:"clear"`
	Cancel     bool    `json:"cancel"`
}

type fieldClickArgs struct {
	DocumentID string `json:"document_id"`
	FieldID    string `json:"field_id"`
	Signature  string `json:"signature"`
}

type renderFieldsArgs struct {
	DocumentID string `json:"document_id"`
	BasePath   string `json:"base_path"`
	OutputPath string `json:"output_path"`
}

// bindArguments decodes the tool arguments into target
func bindArguments(request mcp.CallToolRequest, target any) error {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// toolError logs err and turns it into a tool-level error result
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool failed", "tool", tool, "kind", stamperr.KindOf(err), "err", err)
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) handleFieldCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fieldCreateArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FieldCreate(ctx, stamp.FieldCreateRequest{
		DocumentID: args.DocumentID,
		Type:       args.Type,
		Drop:       placement.Point{X: args.DropX, Y: args.DropY},
		Container:  placement.Size{Width: args.ContainerWidth, Height: args.ContainerHeight},
		PageWidth:  args.PageWidth,
		PageHeight: args.PageHeight,
	})
	if err != nil {
		return s.toolError("field_create", err), nil
	}

	return mcp.NewToolResultText("Created " + s.formatFieldResult(result)), nil
}

func (s *Server) handleFieldDrag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req stamp.FieldDragRequest
	if err := bindArguments(request, &req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FieldDrag(ctx, req)
	if err != nil {
		return s.toolError("field_drag", err), nil
	}

	return mcp.NewToolResultText("Moved " + s.formatFieldResult(result)), nil
}

func (s *Server) handleFieldResize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req stamp.FieldResizeRequest
	if err := bindArguments(request, &req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FieldResize(ctx, req)
	if err != nil {
		return s.toolError("field_resize", err), nil
	}

	return mcp.NewToolResultText("Resized " + s.formatFieldResult(result)), nil
}

func (s *Server) handleFieldEdit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fieldEditArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch {
	case args.Cancel:
		args.Value = nil
	case args.Clear:
		args.Value = nil
	case args.Value == nil:
		return mcp.NewToolResultError("one of value, clear=true or cancel=true is required"), nil
	}

	result, err := s.service.FieldEdit(ctx, stamp.FieldEditRequest{
		DocumentID: args.DocumentID,
		FieldID:    args.FieldID,
		Value:      args.Value,
		Cancel:     args.Cancel,
	})
	if err != nil {
		return s.toolError("field_edit", err), nil
	}

	if args.Cancel {
		return mcp.NewToolResultText("Cancelled edit of " + s.formatFieldResult(result)), nil
	}
	return mcp.NewToolResultText("Updated " + s.formatFieldResult(result)), nil
}

func (s *Server) handleFieldClick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fieldClickArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Signature != "" {
		ctx = withSignature(ctx, args.Signature)
	}

	result, err := s.service.FieldClick(ctx, stamp.FieldClickRequest{
		DocumentID: args.DocumentID,
		FieldID:    args.FieldID,
	})
	if err != nil {
		return s.toolError("field_click", err), nil
	}

	text := fmt.Sprintf("Click %s\n", result.Result)
	text += s.formatFieldResult(&result.FieldResult)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFieldRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req stamp.FieldRemoveRequest
	if err := bindArguments(request, &req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FieldRemove(ctx, req)
	if err != nil {
		return s.toolError("field_remove", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed field %s from document %s (%d remaining)",
		result.FieldID, result.DocumentID, result.Remaining)), nil
}

func (s *Server) handleFieldList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FieldList(ctx, stamp.FieldListRequest{DocumentID: documentID})
	if err != nil {
		return s.toolError("field_list", err), nil
	}

	return mcp.NewToolResultText(s.formatFieldListResult(result)), nil
}

func (s *Server) handleDocumentDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.service.DocumentDelete(ctx, documentID); err != nil {
		return s.toolError("document_delete", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted document %s", documentID)), nil
}

func (s *Server) handleRenderFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args renderFieldsArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := stamp.RenderFieldsRequest{DocumentID: args.DocumentID}
	if args.BasePath != "" {
		base, err := s.files.ReadPDF(args.BasePath)
		if err != nil {
			return s.toolError("render_fields", err), nil
		}
		req.Base = base
	}

	result, err := s.service.RenderFields(ctx, req)
	if err != nil {
		return s.toolError("render_fields", err), nil
	}

	text := s.formatRenderResult(result)

	if args.OutputPath != "" {
		written, err := s.files.WritePDF(args.OutputPath, result.Output)
		if err != nil {
			return s.toolError("render_fields", err), nil
		}
		text += fmt.Sprintf("Output: %s (%d bytes)\n", written, len(result.Output))
		return mcp.NewToolResultText(text), nil
	}

	text += fmt.Sprintf("Output: inline (%d bytes)\n", len(result.Output))
	return mcp.NewToolResultResource(text, mcp.BlobResourceContents{
		URI:      fmt.Sprintf("stamp://documents/%s/render.pdf", result.DocumentID),
		MIMEType: "application/pdf",
		Blob:     base64.StdEncoding.EncodeToString(result.Output),
	}), nil
}

func (s *Server) handleStamperInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.Info(ctx, availableTools())
	if err != nil {
		return s.toolError("stamper_info", err), nil
	}

	return mcp.NewToolResultText(s.formatInfoResult(result)), nil
}

// availableTools lists the registered tools for the info tool
func availableTools() []stamp.ToolInfo {
	names := descriptions.GetAllToolNames()
	tools := make([]stamp.ToolInfo, 0, len(names))
	for _, name := range names {
		tools = append(tools, stamp.ToolInfo{
			Name:        name,
			Description: descriptions.GetToolDescription(name),
			Parameters:  descriptions.GetToolParameters(name),
		})
	}
	return tools
}

type signatureKey struct{}

func withSignature(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, signatureKey{}, uri)
}

// ContextCapturer returns the capture collaborator used by the tools: the
// signature bitmap travels with the field_click call that requests it.
func ContextCapturer() placement.Capturer {
	return placement.CapturerFunc(func(ctx context.Context, f field.Field) (string, error) {
		uri, _ := ctx.Value(signatureKey{}).(string)
		if uri == "" {
			return "", stamperr.New(stamperr.KindInvalidState,
				"signature capture requested: call field_click again with a signature data URI").
				WithField(f.ID, string(f.Type))
		}
		return uri, nil
	})
}
