package chat

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/archipelago-assistant/embeddings"
	"github.com/fabfab/archipelago-assistant/llm"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubRetriever struct {
	matches []Match
	err     error
	calls   int
	gotK    int
}

func (s *stubRetriever) SimilarDocuments(_ context.Context, _ []float32, k int) ([]Match, error) {
	s.calls++
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

type stubLLM struct {
	answer   string
	err      error
	calls    int
	messages []llm.Message
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.calls++
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func quietLogger() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

func docs(texts ...string) []Match {
	out := make([]Match, len(texts))
	for i, text := range texts {
		out[i] = Match{Document: Document{ID: string(rune('a' + i)), Source: "kb", Content: text}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	for _, question := range []string{"", "   ", "\n\t"} {
		emb, ret, gen := &stubEmbedder{}, &stubRetriever{}, &stubLLM{}
		p := NewPipeline(emb, ret, gen, quietLogger())

		_, err := p.Answer(context.Background(), question)
		require.ErrorIs(t, err, ErrInvalidInput)

		var upstream *UpstreamError
		assert.False(t, errors.As(err, &upstream))
		assert.Zero(t, emb.calls)
		assert.Zero(t, ret.calls)
		assert.Zero(t, gen.calls)
	}
}

func TestAnswerRendersContextAndQuestion(t *testing.T) {
	ret := &stubRetriever{matches: docs("ASTON is the flagship brand.", "Huxley is ultra-chic.", "ALANA is premium.")}
	gen := &stubLLM{answer: "  ASTON, of course!\n"}
	p := NewPipeline(&stubEmbedder{}, ret, gen, quietLogger())

	answer, err := p.Answer(context.Background(), "Which brand is the flagship?")
	require.NoError(t, err)

	assert.Equal(t, "  ASTON, of course!\n", answer, "answer must be returned verbatim")
	assert.Equal(t, TopK, ret.gotK)

	require.Len(t, gen.messages, 1)
	assert.Equal(t, llm.RoleSystem, gen.messages[0].Role)

	wantContext := "ASTON is the flagship brand.\n\nHuxley is ultra-chic.\n\nALANA is premium."
	assert.Equal(t, ArchipelagoPrompt.Render(wantContext, "Which brand is the flagship?"), gen.messages[0].Content)
	assert.Contains(t, gen.messages[0].Content, "Context information: "+wantContext+"\n\nGuest's Question: Which brand is the flagship?\n\n")
}

func TestAnswerUsesAtMostTopK(t *testing.T) {
	ret := &stubRetriever{matches: docs("one", "two", "three", "four", "five")}
	gen := &stubLLM{answer: "ok"}
	p := NewPipeline(&stubEmbedder{}, ret, gen, quietLogger())

	_, err := p.Answer(context.Background(), "q")
	require.NoError(t, err)

	prompt := gen.messages[0].Content
	assert.Contains(t, prompt, "one\n\ntwo\n\nthree\n\nGuest's")
	assert.NotContains(t, prompt, "four")
}

func TestAnswerWithFewerDocuments(t *testing.T) {
	gen := &stubLLM{answer: "ok"}
	p := NewPipeline(&stubEmbedder{}, &stubRetriever{matches: docs("only")}, gen, quietLogger())

	_, err := p.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Contains(t, gen.messages[0].Content, "Context information: only\n\nGuest's Question: q\n")
}

func TestAnswerWithEmptyIndex(t *testing.T) {
	gen := &stubLLM{answer: "Please contact Archipelago Customer Services."}
	p := NewPipeline(&stubEmbedder{}, &stubRetriever{}, gen, quietLogger())

	answer, err := p.Answer(context.Background(), "Do you have a hotel on Mars?")
	require.NoError(t, err)
	assert.Equal(t, gen.answer, answer)
	assert.Contains(t, gen.messages[0].Content, "Context information: \n\nGuest's Question: Do you have a hotel on Mars?")
}

func TestAnswerUpstreamFailures(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name  string
		emb   *stubEmbedder
		ret   *stubRetriever
		gen   *stubLLM
		stage string
	}{
		{"embed", &stubEmbedder{err: boom}, &stubRetriever{}, &stubLLM{}, StageEmbed},
		{"retrieve", &stubEmbedder{}, &stubRetriever{err: boom}, &stubLLM{}, StageRetrieve},
		{"generate", &stubEmbedder{}, &stubRetriever{matches: docs("x")}, &stubLLM{err: boom}, StageGenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.emb, tt.ret, tt.gen, quietLogger())
			_, err := p.Answer(context.Background(), "What brands does Archipelago operate?")
			require.Error(t, err)

			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.stage, upstream.Stage)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.stage+": connection refused", err.Error())
			assert.False(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestAnswerNoRetries(t *testing.T) {
	gen := &stubLLM{err: errors.New("503")}
	p := NewPipeline(&stubEmbedder{}, &stubRetriever{}, gen, quietLogger())

	_, err := p.Answer(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestAnswerMissingCollaborator(t *testing.T) {
	p := NewPipeline(&stubEmbedder{}, nil, &stubLLM{}, quietLogger())
	_, err := p.Answer(context.Background(), "q")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, StageRetrieve, upstream.Stage)
}

func TestAnswerIsDeterministic(t *testing.T) {
	echo := &echoLLM{}
	p := NewPipeline(&stubEmbedder{}, &stubRetriever{matches: docs("FAVE Hotel is a lifestyle brand.")}, echo, quietLogger())

	first, err := p.Answer(context.Background(), "Tell me about FAVE")
	require.NoError(t, err)
	second, err := p.Answer(context.Background(), "Tell me about FAVE")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

type echoLLM struct{}

func (echoLLM) Generate(_ context.Context, messages []llm.Message) (string, error) {
	return messages[0].Content, nil
}

func TestWithPrompt(t *testing.T) {
	gen := &stubLLM{answer: "ok"}
	p := NewPipeline(&stubEmbedder{}, &stubRetriever{matches: docs("ctx")}, gen, quietLogger(), WithPrompt("Q={question} C={context}"))

	_, err := p.Answer(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Q=hi C=ctx", gen.messages[0].Content)
}

func TestRenderIsSinglePass(t *testing.T) {
	out := PromptTemplate("[{context}|{question}]").Render("see {question}", "why {context}?")
	assert.Equal(t, "[see {question}|why {context}?]", out)
}

func TestArchipelagoPromptPlaceholders(t *testing.T) {
	assert.Equal(t, 1, strings.Count(string(ArchipelagoPrompt), "{context}"))
	assert.Equal(t, 1, strings.Count(string(ArchipelagoPrompt), "{question}"))
	assert.Contains(t, string(ArchipelagoPrompt), "8. If user question in another languages than english.")
	assert.Contains(t, string(ArchipelagoPrompt), "4. If information is not in context, warmly suggest contacting Archipelago Customer Services")
}

func TestArchipelagoPromptMatchesGolden(t *testing.T) {
	golden, err := os.ReadFile(filepath.Join("testdata", "archipelago_prompt.golden"))
	require.NoError(t, err)

	assert.Equal(t, string(golden), string(ArchipelagoPrompt))
	firstLine, _, _ := strings.Cut(string(ArchipelagoPrompt), "\n")
	assert.True(t, strings.HasSuffix(firstLine, "International, "), "first line keeps its trailing space")
}
