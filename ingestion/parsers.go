package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrSourceColumn is returned when a CSV header lacks the source column.
var ErrSourceColumn = errors.New("source column not found in CSV file")

// DocumentPayload is a file read from the data directory. Path is relative
// to the directory root, slash separated.
type DocumentPayload struct {
	Path string
	Data []byte
}

// Passage is one retrievable unit of text and the identifier it is cited by.
type Passage struct {
	Source  string
	Content string
}

type DocumentParser interface {
	Parse(ctx context.Context, payload DocumentPayload) ([]Passage, error)
}

// ParserFor returns the parser for format, or nil when format is unsupported.
func ParserFor(format DocumentFormat, sourceColumn string) DocumentParser {
	switch format {
	case FormatCSV:
		return csvParser{sourceColumn: sourceColumn}
	case FormatMarkdown:
		return markdownParser{}
	case FormatPDF:
		return pdfParser{}
	default:
		return nil
	}
}

// csvParser emits one passage per row. Content is a "header: value" line per
// column; the source is the row's value in sourceColumn.
type csvParser struct {
	sourceColumn string
}

func (p csvParser) Parse(_ context.Context, payload DocumentPayload) ([]Passage, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(payload.Data, []byte("\xef\xbb\xbf"))))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	sourceIdx := -1
	column := p.sourceColumn
	if column == "" {
		column = "content"
	}
	for i, header := range headers {
		if strings.TrimSpace(header) == column {
			sourceIdx = i
			break
		}
	}
	if sourceIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSourceColumn, column)
	}

	passages := make([]Passage, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv row %d: %w", line, err)
		}

		source := ""
		if sourceIdx < len(row) {
			source = row[sourceIdx]
		}
		passages = append(passages, Passage{
			Source:  source,
			Content: formatCSVRow(headers, row),
		})
	}

	return passages, nil
}

func formatCSVRow(headers, row []string) string {
	lines := make([]string, 0, len(headers))
	for i, header := range headers {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		lines = append(lines, strings.TrimSpace(header)+": "+value)
	}
	return strings.Join(lines, "\n")
}

type markdownParser struct{}

func (markdownParser) Parse(_ context.Context, payload DocumentPayload) ([]Passage, error) {
	return passagesFromChunks(payload.Path, ChunkSections(string(payload.Data), defaultChunkSize, defaultChunkOverlap)), nil
}

type pdfParser struct{}

func (pdfParser) Parse(_ context.Context, payload DocumentPayload) ([]Passage, error) {
	doc, err := pdf.NewReader(bytes.NewReader(payload.Data), int64(len(payload.Data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	content := normalizePlainText(buf.String())
	return passagesFromChunks(payload.Path, ChunkSections(content, defaultChunkSize, defaultChunkOverlap)), nil
}

// passagesFromChunks labels each chunk "path#Heading", or just path when
// the chunk precedes every heading.
func passagesFromChunks(path string, chunks []Chunk) []Passage {
	passages := make([]Passage, 0, len(chunks))
	for _, chunk := range chunks {
		source := path
		if chunk.Heading != "" {
			source = path + "#" + chunk.Heading
		}
		passages = append(passages, Passage{Source: source, Content: chunk.Text})
	}
	return passages
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
