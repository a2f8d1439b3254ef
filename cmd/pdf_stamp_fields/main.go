package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/render"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// StampResult represents the outcome of one stamping run
type StampResult struct {
	RequestPath string           `json:"request_path"`
	BasePath    string           `json:"base_path,omitempty"`
	OutputPath  string           `json:"output_path,omitempty"`
	Success     bool             `json:"success"`
	PageWidth   float64          `json:"page_width"`
	PageHeight  float64          `json:"page_height"`
	FieldCount  int              `json:"field_count"`
	Drawn       int              `json:"drawn"`
	Skipped     int              `json:"skipped"`
	Pages       int              `json:"pages,omitempty"`
	Issues      []stamperr.Issue `json:"issues"`
	Error       string           `json:"error,omitempty"`
	RenderTime  string           `json:"render_time,omitempty"`
}

type options struct {
	basePath string
	outPath  string
	format   string
	lenient  bool
	verify   bool
	logLevel string
	help     bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("pdf_stamp_fields", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.basePath, "base", "", "One-page PDF to stamp onto (a blank page is used if empty)")
	fs.StringVar(&opts.outPath, "out", "stamped.pdf", "Where to write the rendered PDF")
	fs.StringVar(&opts.format, "format", "text", "Report format: text, json")
	fs.BoolVar(&opts.lenient, "lenient", false, "Draw fields with out-of-range geometry instead of rejecting the request")
	fs.BoolVar(&opts.verify, "verify", false, "Re-open the rendered PDF to verify it")
	fs.StringVar(&opts.logLevel, "loglevel", "warn", "Log level (debug, info, warn, error)")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printUsage(stderr)
		return 2
	}
	if opts.help {
		printHelp(stdout, fs)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: request file required\n\n")
		printUsage(stderr)
		return 2
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unsupported output format: %s\n", opts.format)
		return 2
	}

	result := stamp(ctx, fs.Arg(0), opts, stderr)

	if err := outputResults(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	if !result.Success {
		return 1
	}
	return 0
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "PDF Stamp Fields - Burn placed fields into a PDF page")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Reads a render request (JSON or YAML) with the page size in points and the")
	fmt.Fprintln(w, "fields in page percentages, and writes the stamped PDF.")
	fmt.Fprintln(w)
	printUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf_stamp_fields fields.json")
	fmt.Fprintln(w, "  pdf_stamp_fields --base lease.pdf --out signed.pdf fields.yaml")
	fmt.Fprintln(w, "  pdf_stamp_fields --format json --verify fields.json")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_stamp_fields [OPTIONS] <request.json|request.yaml>")
}

func stamp(ctx context.Context, requestPath string, opts options, stderr io.Writer) *StampResult {
	result := &StampResult{RequestPath: requestPath, Issues: []stamperr.Issue{}}

	req, err := loadRequest(requestPath)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.FieldCount = len(req.Fields)

	if opts.basePath != "" {
		base, err := os.ReadFile(opts.basePath)
		if err != nil {
			result.Error = fmt.Sprintf("cannot read base PDF: %v", err)
			return result
		}
		req.Base = base
		result.BasePath = opts.basePath
		// the base document's own page size wins over the request's
		req.PageWidth, req.PageHeight = 0, 0
	}

	renderer := render.NewRenderer(render.Options{
		StrictGeometry: !opts.lenient,
		Logger:         logging.New(stderr, opts.logLevel),
	})

	start := time.Now()
	res, err := renderer.Render(ctx, *req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.RenderTime = time.Since(start).String()
	result.PageWidth, result.PageHeight = res.PageWidth, res.PageHeight
	result.Drawn, result.Skipped = res.Drawn, res.Skipped
	result.Issues = res.Issues

	if opts.verify {
		pages, err := render.Verify(res.Output)
		if err != nil {
			result.Error = fmt.Sprintf("rendered output failed verification: %v", err)
			return result
		}
		result.Pages = pages
	}

	if dir := filepath.Dir(opts.outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			result.Error = fmt.Sprintf("cannot create output directory: %v", err)
			return result
		}
	}
	if err := os.WriteFile(opts.outPath, res.Output, 0o644); err != nil {
		result.Error = fmt.Sprintf("cannot write output: %v", err)
		return result
	}
	result.OutputPath = opts.outPath
	result.Success = true
	return result
}

// loadRequest reads a render request. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func loadRequest(path string) (*render.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read request: %w", err)
	}

	var req render.Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("cannot decode YAML request: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("cannot decode JSON request: %w", err)
		}
	}
	if req.Fields == nil {
		return nil, errors.New("request has no fields list")
	}
	return &req, nil
}

func outputResults(w io.Writer, format string, result *StampResult) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		return outputText(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputText(w io.Writer, result *StampResult) error {
	if !result.Success {
		_, err := fmt.Fprintf(w, "❌ Stamping failed: %s\n", result.Error)
		return err
	}

	fmt.Fprintf(w, "✅ Wrote %s\n", result.OutputPath)
	fmt.Fprintf(w, "📄 Page: %g x %g pt\n", result.PageWidth, result.PageHeight)
	fmt.Fprintf(w, "📊 Fields: %d (drawn %d, skipped %d)\n", result.FieldCount, result.Drawn, result.Skipped)
	if result.Pages > 0 {
		fmt.Fprintf(w, "🔍 Verified: %d page(s)\n", result.Pages)
	}
	if len(result.Issues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "⚠️  ISSUES:")
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "  • %s (%s) %s: %s\n", issue.FieldID, issue.FieldType, issue.Kind, issue.Message)
		}
	}
	_, err := fmt.Fprintf(w, "⏱️  Render time: %s\n", result.RenderTime)
	return err
}
