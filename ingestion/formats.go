// Package ingestion loads CSV, Markdown and PDF files into the knowledge base.
package ingestion

import (
	"path/filepath"
	"strings"
)

// DocumentFormat enumerates supported source file formats.
type DocumentFormat string

const (
	// FormatUnknown marks files the loader skips.
	FormatUnknown  DocumentFormat = ""
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
	// FormatCSV files produce one passage per row.
	FormatCSV DocumentFormat = "csv"
)

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}
