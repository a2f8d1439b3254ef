package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Placement Tools
	FieldCreateDescription = `Drop a new field onto a document's page.

**When to use:** A user drops a signature, text, image, date or choice field onto a rendered page preview.

**Why it's useful:** Converts the drop point from preview pixels to page percentages, applies the type's default size and value, and clamps the field inside the page.

**Examples:**
• Add a signature line: "Drop a signature field at (400, 850) on a 800x1000 preview of contract-7"
• Start a new document: "Create a text field on a new A4 document (595x842 points)"

**Common workflows:**
1. Form design: field_create → field_drag / field_resize → field_edit → render_fields
2. Signing: field_create (signature) → field_click (capture) → render_fields

**Best practices:** Omit document_id to start a new document; the generated id is returned with the field.`

	FieldDragDescription = `Move a field by replaying a pointer drag over the page preview.

**When to use:** The user grabbed a field and moved it; send the grab point and every pointer position in order.

**Why it's useful:** Keeps the grab offset constant while the pointer moves and never lets the field leave the page.

**Examples:**
• Nudge a date field: "Drag date field f1 from (100, 100) along [(120, 110), (160, 130)] inside the 800x1000 preview"

**Best practices:** A drag that moved the field suppresses the next click on it, the same way a browser swallows the click that ends a drag.`

	FieldResizeDescription = `Resize a field from its bottom-right handle.

**When to use:** The user dragged a field's resize handle; send the field's top-left pixel origin and the pointer path.

**Why it's useful:** Enforces the minimum and maximum field size and keeps the field inside the page.

**Examples:**
• Widen a text box: "Resize f2 with origin (80, 400) along [(300, 430)] inside the 800x1000 preview"`

	FieldEditDescription = `Set or clear a field's value, or leave an edit without changing it.

**When to use:** The user typed text, picked a date or choice, or uploaded an image. Use cancel=true when the user dismissed the editor opened by field_click.

**Why it's useful:** Validates the value for the field's type before storing it. Image fields take data:image/... URIs, date fields take YYYY-MM-DD, choice fields take option-N keys. Signatures are only captured through field_click.

**Examples:**
• Fill a name: "Set text field f3 to 'Jane Doe'"
• Clear a date: "Clear date field f4"
• Dismiss the editor: "Cancel editing text field f3"

**Best practices:** Pass clear=true instead of an empty value to reset a field to unset. A field in editing cannot be dragged or resized until the edit is committed or cancelled.`

	FieldClickDescription = `Click a field.

**When to use:** The user clicked a field in the preview.

**Why it's useful:** An unset signature field starts a signature capture; other fields enter editing. A click that ends a drag is ignored.

**Examples:**
• Sign: "Click signature field f5 to capture a signature"`

	FieldRemoveDescription = `Remove a field from a document.

**When to use:** The user deleted a field.

**Why it's useful:** Removing a field that no longer exists is not an error, so retries are safe.`

	FieldListDescription = `List a document's fields in paint order.

**When to use:** Need the current placement of every field, for example to redraw a preview or to inspect a document before rendering.

**Why it's useful:** Returns positions and sizes as page percentages together with the document's page size in points.`

	DocumentDeleteDescription = `Delete a document and all its fields.

**When to use:** A document is finished or abandoned and its fields should no longer be kept.`

	// Output Tools
	RenderFieldsDescription = `Burn a document's fields into a PDF page.

**When to use:** The fields are placed and filled and the user wants the final PDF.

**Why it's useful:** Maps every field from page percentages to PDF points with a bottom-left origin, aspect-fits bitmaps, clips text and draws choice indicators. Problems with one field are reported per field and never abort the document.

**Examples:**
• Render onto a blank page: "Render contract-7 to contract-7.pdf"
• Stamp an existing PDF: "Render contract-7 onto base/lease.pdf and write signed/lease.pdf"

**Common workflows:**
1. Signing: field_list → verify values → render_fields with base_path and output_path
2. Preview: render_fields without output_path returns the PDF inline

**Best practices:** Paths are resolved inside the configured directory; unset images and signatures are skipped, not errors.`

	StamperInfoDescription = `Get server information, supported field types and image formats, and the tool list.

**When to use:** At the start of a session to learn what the server supports.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"field_create":    FieldCreateDescription,
	"field_drag":      FieldDragDescription,
	"field_resize":    FieldResizeDescription,
	"field_edit":      FieldEditDescription,
	"field_click":     FieldClickDescription,
	"field_remove":    FieldRemoveDescription,
	"field_list":      FieldListDescription,
	"document_delete": DocumentDeleteDescription,
	"render_fields":   RenderFieldsDescription,
	"stamper_info":    StamperInfoDescription,
}

// ToolParameters summarizes each tool's arguments for the info tool
var ToolParameters = map[string]string{
	"field_create": "type (required): signature, text, image, date or choice; drop_x, drop_y (required): drop point in pixels; " +
		"container_width, container_height (required): preview size in pixels; document_id (optional); " +
		"page_width, page_height (optional): page size in points for a new document",
	"field_drag": "document_id, field_id (required); grab (required): {x, y}; path (required): [{x, y}, ...]; " +
		"container (required): {left, top, width, height}",
	"field_resize": "document_id, field_id (required); field_origin (required): {x, y}; path (required): [{x, y}, ...]; " +
		"container (required): {left, top, width, height}",
	"field_edit":      "document_id, field_id (required); value (optional); clear (optional): reset to unset; " +
		"cancel (optional): leave editing without changing the value",
	"field_click":     "document_id, field_id (required); signature (optional): data URI for an unset signature",
	"field_remove":    "document_id, field_id (required)",
	"field_list":      "document_id (required)",
	"document_delete": "document_id (required)",
	"render_fields": "document_id (required); base_path (optional): one-page PDF to stamp; " +
		"output_path (optional): where to write the result, otherwise it is returned inline",
	"stamper_info": "No parameters required",
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetToolParameters returns the parameter summary for a tool
func GetToolParameters(toolName string) string {
	if params, exists := ToolParameters[toolName]; exists {
		return params
	}
	return ""
}

// GetAllToolNames returns all tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
