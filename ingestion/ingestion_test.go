package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brandsCSV = "content,category\n" +
	"\"Archipelago operates ASTON, Huxley, ALANA, Kamuela, and FAVE Hotel brands\",brands\n" +
	"ARCHIPELAGO Rewards is the loyalty programme,loyalty\n"

func parse(t *testing.T, format DocumentFormat, path, data, column string) ([]Passage, error) {
	t.Helper()
	parser := ParserFor(format, column)
	require.NotNil(t, parser)
	return parser.Parse(context.Background(), DocumentPayload{Path: path, Data: []byte(data)})
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("data/archipelago_info.CSV"))
	assert.Equal(t, FormatMarkdown, DetectFormat("notes.md"))
	assert.Equal(t, FormatMarkdown, DetectFormat("notes.markdown"))
	assert.Equal(t, FormatPDF, DetectFormat("brochure.pdf"))
	assert.Equal(t, FormatUnknown, DetectFormat("image.png"))
	assert.Nil(t, ParserFor(FormatUnknown, ""))
}

func TestCSVParserOnePassagePerRow(t *testing.T) {
	passages, err := parse(t, FormatCSV, "archipelago_info.csv", brandsCSV, "content")
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "Archipelago operates ASTON, Huxley, ALANA, Kamuela, and FAVE Hotel brands", passages[0].Source)
	assert.Equal(t, "content: Archipelago operates ASTON, Huxley, ALANA, Kamuela, and FAVE Hotel brands\ncategory: brands", passages[0].Content)
	assert.Equal(t, "content: ARCHIPELAGO Rewards is the loyalty programme\ncategory: loyalty", passages[1].Content)
}

func TestCSVParserCustomSourceColumn(t *testing.T) {
	passages, err := parse(t, FormatCSV, "info.csv", brandsCSV, "category")
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "brands", passages[0].Source)
	assert.Equal(t, "loyalty", passages[1].Source)
}

func TestCSVParserMissingSourceColumn(t *testing.T) {
	_, err := parse(t, FormatCSV, "info.csv", "text,category\nhello,greeting\n", "content")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceColumn))
	assert.Contains(t, err.Error(), `"content"`)
}

func TestCSVParserHandlesBOMAndShortRows(t *testing.T) {
	passages, err := parse(t, FormatCSV, "info.csv", "\xef\xbb\xbfcontent,category\nonly content\n", "")
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "only content", passages[0].Source)
	assert.Equal(t, "content: only content\ncategory: ", passages[0].Content)
}

func TestCSVParserEmptyFile(t *testing.T) {
	passages, err := parse(t, FormatCSV, "empty.csv", "", "content")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestMarkdownParserLabelsPassagesByHeading(t *testing.T) {
	doc := "Intro line.\n\n# Huxley\n\nUltra-chic.\n\n## Rooms\n\n89 rooms.\n"
	passages, err := parse(t, FormatMarkdown, "brands/huxley.md", doc, "")
	require.NoError(t, err)
	assert.Equal(t, []Passage{
		{Source: "brands/huxley.md", Content: "Intro line."},
		{Source: "brands/huxley.md#Huxley", Content: "# Huxley\n\nUltra-chic."},
		{Source: "brands/huxley.md#Rooms", Content: "## Rooms\n\n89 rooms."},
	}, passages)
}

func TestPDFParserRejectsInvalidData(t *testing.T) {
	_, err := parse(t, FormatPDF, "broken.pdf", "not a pdf", "")
	require.Error(t, err)
}

func TestChunkSectionsOverlapWithinSection(t *testing.T) {
	content := "ASTON hotels are full service\n\nHuxley is ultra chic"

	chunks := ChunkSections(content, 30, 12)
	assert.Equal(t, []Chunk{
		{Text: "ASTON hotels are\n\nfull service"},
		{Text: "full service\n\nHuxley is ultra"},
		{Text: "is ultra\n\nchic"},
	}, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 30)
	}

	chunks = ChunkSections(content, 30, 0)
	assert.Equal(t, []Chunk{
		{Text: "ASTON hotels are full service"},
		{Text: "Huxley is ultra chic"},
	}, chunks)
}

func TestChunkSectionsNeverSpansHeadings(t *testing.T) {
	chunks := ChunkSections("# ASTON\n\nFlagship.\n\n# FAVE\n\nLifestyle.", 1000, 200)
	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{Heading: "ASTON", Text: "# ASTON\n\nFlagship."}, chunks[0])
	assert.Equal(t, Chunk{Heading: "FAVE", Text: "# FAVE\n\nLifestyle."}, chunks[1])
}

func TestChunkSectionsIgnoresFencedAndMalformedHeadings(t *testing.T) {
	doc := "# Setup\n\n```\n# not a heading\n```\n\n#hashtag stays text"
	chunks := ChunkSections(doc, 1000, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Setup", chunks[0].Heading)
	assert.Contains(t, chunks[0].Text, "# not a heading")
	assert.Contains(t, chunks[0].Text, "#hashtag stays text")
}

func TestChunkSectionsSkipsBlankParagraphs(t *testing.T) {
	assert.Empty(t, ChunkSections("\r\n\r\n   \n\n", 100, 10))
}

type recordingEmbedder struct {
	batches [][]string
	short   bool
}

func (e *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, texts)
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(e.batches)), float32(i)}
	}
	return out, nil
}

func TestEmbedInBatches(t *testing.T) {
	texts := make([]string, EmbedBatchSize+1)
	for i := range texts {
		texts[i] = "passage"
	}

	embedder := &recordingEmbedder{}
	vectors, err := EmbedInBatches(context.Background(), embedder, texts, 0)
	require.NoError(t, err)

	require.Len(t, embedder.batches, 2)
	assert.Len(t, embedder.batches[0], EmbedBatchSize)
	assert.Len(t, embedder.batches[1], 1)
	require.Len(t, vectors, len(texts))
	assert.Equal(t, []float32{2, 0}, vectors[EmbedBatchSize])
}

func TestEmbedInBatchesCountMismatch(t *testing.T) {
	_, err := EmbedInBatches(context.Background(), &recordingEmbedder{short: true}, []string{"a", "b"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestCollectFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "brands"), 0o755))
	for _, name := range []string{"b.csv", "a.md", "brands/c.pdf", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	paths, err := collectFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.md"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "brands", "c.pdf"),
	}, paths)

	_, err = collectFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestIngestDirectoryRequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, nil, nil, 384, "content").IngestDirectory(context.Background(), t.TempDir())
	require.EqualError(t, err, "embedder not configured")

	_, err = NewService(nil, &recordingEmbedder{}, nil, 384, "content").IngestDirectory(context.Background(), t.TempDir())
	require.EqualError(t, err, "postgres pool is nil")
}
