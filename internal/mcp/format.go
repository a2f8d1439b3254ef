package mcp

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamp"
)

// maxValuePreview bounds how much of a value is echoed back; bitmap data URIs
// run to many kilobytes.
const maxValuePreview = 48

func (s *Server) formatFieldResult(result *stamp.FieldResult) string {
	if result.Field == nil {
		return fmt.Sprintf("field on document %s (state %s)\n", result.DocumentID, result.State)
	}
	text := fmt.Sprintf("field %s on document %s\n", result.Field.ID, result.DocumentID)
	text += formatField(result.Field)
	text += fmt.Sprintf("State: %s\n", result.State)
	return text
}

func formatField(f *field.Field) string {
	text := fmt.Sprintf("Type: %s\n", f.Type)
	text += fmt.Sprintf("Position: x=%.2f%% y=%.2f%%\n", f.X, f.Y)
	text += fmt.Sprintf("Size: %.2f%% x %.2f%%\n", f.Width, f.Height)
	text += fmt.Sprintf("Value: %s\n", previewValue(f))
	if len(f.Options) > 0 {
		opts := make([]string, len(f.Options))
		for i, o := range f.Options {
			opts[i] = fmt.Sprintf("%s=%s", field.OptionKey(i), o)
		}
		text += fmt.Sprintf("Options: %s\n", strings.Join(opts, ", "))
	}
	return text
}

func previewValue(f *field.Field) string {
	if f.Value == nil {
		return "(unset)"
	}
	v := *f.Value
	if f.Type.BitmapValued() && strings.HasPrefix(v, "data:") {
		if i := strings.IndexByte(v, ','); i > 0 {
			return fmt.Sprintf("%s (%d bytes)", v[:i], len(v)-i-1)
		}
	}
	if len(v) > maxValuePreview {
		return fmt.Sprintf("%q...", v[:maxValuePreview])
	}
	return fmt.Sprintf("%q", v)
}

func (s *Server) formatFieldListResult(result *stamp.FieldListResult) string {
	text := fmt.Sprintf("Document %s\n", result.DocumentID)
	text += fmt.Sprintf("Page: %g x %g pt\n", result.PageWidth, result.PageHeight)
	if len(result.Fields) == 0 {
		text += "Fields: none\n"
		return text
	}

	text += fmt.Sprintf("Fields (%d, paint order):\n", len(result.Fields))
	for i := range result.Fields {
		f := &result.Fields[i]
		text += fmt.Sprintf("%d. %s %s at (%.2f%%, %.2f%%) size %.2f%% x %.2f%%, value %s\n",
			i+1, f.ID, f.Type, f.X, f.Y, f.Width, f.Height, previewValue(f))
	}
	return text
}

func (s *Server) formatRenderResult(result *stamp.RenderResult) string {
	text := fmt.Sprintf("Rendered document %s\n", result.DocumentID)
	text += fmt.Sprintf("Page: %g x %g pt\n", result.PageWidth, result.PageHeight)
	text += fmt.Sprintf("Fields drawn: %d, skipped: %d\n", result.Drawn, result.Skipped)
	if result.Pages > 0 {
		text += fmt.Sprintf("Verified: %d page(s)\n", result.Pages)
	}
	if len(result.Issues) > 0 {
		text += fmt.Sprintf("Issues (%d):\n", len(result.Issues))
		for _, issue := range result.Issues {
			text += fmt.Sprintf("  • %s (%s) %s: %s\n", issue.FieldID, issue.FieldType, issue.Kind, issue.Message)
		}
	}
	return text
}

func (s *Server) formatInfoResult(result *stamp.InfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Workspace Directory: %s\n", s.files.Dir())
	text += fmt.Sprintf("📏 Max Base PDF Size: %d MB\n", s.files.MaxFileSize()/(1024*1024))
	text += fmt.Sprintf("🗄️  Store: %s (%d documents)\n", result.Store, result.Documents)
	text += fmt.Sprintf("📄 Default Page: %g x %g pt\n", result.DefaultPage[0], result.DefaultPage[1])
	text += fmt.Sprintf("📐 Strict Geometry: %t, Verify Output: %t\n\n", result.StrictGeometry, result.VerifyOutput)

	text += fmt.Sprintf("🧩 Field Types: %s\n", strings.Join(result.FieldTypes, ", "))
	text += fmt.Sprintf("🖼️  Supported Image Formats: %s\n\n", strings.Join(result.SupportedImages, ", "))

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	return text
}
