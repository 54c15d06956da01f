package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KOO-96/chatbot-study/internal/config"
	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/prompt"
	"github.com/KOO-96/chatbot-study/internal/rag/quality"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeStore struct {
	results []schema.SearchResult
	err     error
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []schema.Chunk, vectors [][]float32) error {
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int) ([]schema.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeStore) ListDocuments(ctx context.Context) ([]schema.DocumentInfo, error) {
	return nil, nil
}

func (f *fakeStore) Delete(ctx context.Context, documentID string) (bool, error) {
	return false, nil
}

type fakeGenerator struct {
	answer    string
	genErr    error
	warmupErr error
	calls     int
}

func (f *fakeGenerator) Warmup(ctx context.Context) error { return f.warmupErr }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	f.calls++
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateChat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	return f.answer, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.Default().Pipeline
}

func newTestPipeline(store *fakeStore, gen interfaces.Generator) *QueryPipeline {
	validator := quality.NewValidator(quality.DefaultThresholds())
	return NewQueryPipeline(&fakeEmbedder{}, store, gen, validator, testPipelineConfig(), logger.New("test"))
}

const (
	contextInstall = "설치 과정은 패키지 관리자를 사용하며 설정 파일은 YAML 형식입니다."
	contextPort    = "서버 포트는 설정 파일의 server 섹션에서 지정하며 기본값은 8000입니다."
)

func TestRunRejectsBadArguments(t *testing.T) {
	p := newTestPipeline(&fakeStore{}, nil)

	if _, err := p.Run(context.Background(), "   ", 5, Options{}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query: got %v, want ErrEmptyQuery", err)
	}
	if _, err := p.Run(context.Background(), "질문", 0, Options{}); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("top_k 0: got %v, want ErrInvalidTopK", err)
	}
	if _, err := p.Run(context.Background(), "질문", -3, Options{}); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("negative top_k: got %v, want ErrInvalidTopK", err)
	}
}

func TestRunPropagatesRetrievalErrors(t *testing.T) {
	embedErr := errors.New("embedding server down")
	validator := quality.NewValidator(quality.DefaultThresholds())
	p := NewQueryPipeline(&fakeEmbedder{err: embedErr}, &fakeStore{}, nil, validator, testPipelineConfig(), logger.New("test"))

	if _, err := p.Run(context.Background(), "질문", 5, Options{}); !errors.Is(err, embedErr) {
		t.Errorf("embed failure: got %v, want wrapped %v", err, embedErr)
	}

	searchErr := errors.New("milvus unavailable")
	p = newTestPipeline(&fakeStore{err: searchErr}, nil)
	if _, err := p.Run(context.Background(), "질문", 5, Options{}); !errors.Is(err, searchErr) {
		t.Errorf("search failure: got %v, want wrapped %v", err, searchErr)
	}
}

func TestRunNoResults(t *testing.T) {
	p := newTestPipeline(&fakeStore{}, nil)

	result, err := p.Run(context.Background(), "unrelated topic", 5, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Answer, "찾을 수 없습니다") {
		t.Errorf("answer = %q, want the no-documents message", result.Answer)
	}
	if len(result.Contexts) != 0 || result.Contexts == nil {
		t.Errorf("contexts = %v, want empty non-nil slice", result.Contexts)
	}
	if len(result.Sources) != 0 || result.Sources == nil {
		t.Errorf("sources = %v, want empty non-nil slice", result.Sources)
	}
}

func TestRunScoreFilterKeepsHighScores(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
		{Text: contextPort, Score: 0.4, DocumentID: "d2"},
		{Text: contextPort, Score: 0.2, DocumentID: "d3"},
	}}
	p := newTestPipeline(store, nil)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Contexts) != 1 {
		t.Fatalf("contexts = %v, want exactly the 0.9 result", result.Contexts)
	}
	if result.Contexts[0] != contextInstall {
		t.Errorf("surviving context = %q, want %q", result.Contexts[0], contextInstall)
	}
	if len(result.Sources) != 1 || result.Sources[0].DocumentID != "d1" {
		t.Errorf("sources = %v, want only d1", result.Sources)
	}
}

func TestRunAllBelowThreshold(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.3, DocumentID: "d1"},
		{Text: contextPort, Score: 0.1, DocumentID: "d2"},
	}}
	p := newTestPipeline(store, nil)

	result, err := p.Run(context.Background(), "질문", 5, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Answer, "관련된 정보를 찾을 수 없습니다") {
		t.Errorf("answer = %q, want the below-threshold message", result.Answer)
	}
	if len(result.Contexts) != 0 {
		t.Errorf("contexts = %v, want empty", result.Contexts)
	}
	// The raw retrieval list is surfaced so the caller can inspect what
	// was found despite nothing passing the score gate.
	if len(result.Sources) != 2 {
		t.Errorf("sources = %v, want both raw results", result.Sources)
	}
}

func TestRunContentFilterDropsShortAndArtifactTexts(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: "짧은 글", Score: 0.9, DocumentID: "d1"},
		{Text: ". 추출 과정에서 깨진 조각이 문장 앞에 남은 경우입니다", Score: 0.8, DocumentID: "d2"},
	}}
	p := newTestPipeline(store, nil)

	result, err := p.Run(context.Background(), "질문", 5, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Answer, "유용한 정보를 찾을 수 없습니다") {
		t.Errorf("answer = %q, want the no-useful-info message", result.Answer)
	}
	// Sources carry the score-filtered list, the last non-empty candidate
	// set before the exit.
	if len(result.Sources) != 2 {
		t.Errorf("sources = %v, want the score-filtered candidates", result.Sources)
	}
}

func TestRunWithoutGeneratorUsesTemplate(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
		{Text: contextPort, Score: 0.8, DocumentID: "d2"},
	}}
	gen := &fakeGenerator{answer: "사용되어서는 안 되는 답변"}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: false})
	if err != nil {
		t.Fatal(err)
	}

	want := prompt.BuildSimpleResponse("설치 방법은?", []string{contextInstall, contextPort}, simpleResponseLength)
	if result.Answer != want {
		t.Errorf("answer = %q, want the exact template response %q", result.Answer, want)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestRunNilGeneratorUsesTemplate(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	p := newTestPipeline(store, nil)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	want := prompt.BuildSimpleResponse("설치 방법은?", []string{contextInstall}, simpleResponseLength)
	if result.Answer != want {
		t.Errorf("answer = %q, want the template response", result.Answer)
	}
}

func TestRunAcceptsValidGeneratedAnswer(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	answer := "설치 과정은 패키지 관리자를 사용합니다. 설정 파일은 YAML 형식입니다."
	gen := &fakeGenerator{answer: answer}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Answer != answer {
		t.Errorf("answer = %q, want the generated answer %q", result.Answer, answer)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestRunRejectsRepetitiveGeneration(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	gen := &fakeGenerator{answer: strings.Repeat("동일한 문장이 반복됩니다. ", 6)}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	want := prompt.BuildSimpleResponse("설치 방법은?", []string{contextInstall}, simpleResponseLength)
	if result.Answer != want {
		t.Errorf("answer = %q, want the template fallback", result.Answer)
	}
}

func TestRunRejectsWrongRefusal(t *testing.T) {
	// The generator claims nothing was found even though the contexts
	// contain the query's own keyword.
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	gen := &fakeGenerator{answer: "정보가 없습니다"}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "설치 방법을 알려주세요", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	want := prompt.BuildSimpleResponse("설치 방법을 알려주세요", []string{contextInstall}, simpleResponseLength)
	if result.Answer != want {
		t.Errorf("answer = %q, want the template fallback instead of the refusal", result.Answer)
	}
}

func TestRunAcceptsTopicalRefusal(t *testing.T) {
	// The question asks for something genuinely absent from the contexts,
	// and the refusal still references the context's topic. Such a refusal
	// is an honest answer and is returned as-is.
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	answer := "제공된 설치 설정 파일은 YAML 형식입니다. 배포 일정은 찾을 수 없습니다."
	gen := &fakeGenerator{answer: answer}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "배포 일정은 언제인가요?", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Answer != answer {
		t.Errorf("answer = %q, want the refusal kept as-is %q", result.Answer, answer)
	}
}

func TestRunKeepsNonDegenerateAnswerOnOverlapFailure(t *testing.T) {
	// The generated answer shares no words with the contexts and fails
	// validation, but it is long enough and not repetitive, so the raw
	// output is preferred over the template fallback.
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}
	answer := "오늘 날씨는 맑고 화창하며 기온이 높습니다."
	gen := &fakeGenerator{answer: answer}
	p := newTestPipeline(store, gen)

	result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Answer != answer {
		t.Errorf("answer = %q, want the raw generated answer %q", result.Answer, answer)
	}
}

func TestRunGeneratorFailureFallsBack(t *testing.T) {
	store := &fakeStore{results: []schema.SearchResult{
		{Text: contextInstall, Score: 0.9, DocumentID: "d1"},
	}}

	for name, gen := range map[string]*fakeGenerator{
		"generate error": {genErr: errors.New("model crashed")},
		"warmup error":   {warmupErr: errors.New("model not found")},
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(store, gen)
			result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
			if err != nil {
				t.Fatalf("generation failures must not surface as errors, got %v", err)
			}
			want := prompt.BuildSimpleResponse("설치 방법은?", []string{contextInstall}, simpleResponseLength)
			if result.Answer != want {
				t.Errorf("answer = %q, want the template fallback", result.Answer)
			}
		})
	}
}

func TestRunAnswerNeverEmpty(t *testing.T) {
	stores := []*fakeStore{
		{},
		{results: []schema.SearchResult{{Text: contextInstall, Score: 0.1}}},
		{results: []schema.SearchResult{{Text: "짧음", Score: 0.9}}},
		{results: []schema.SearchResult{{Text: contextInstall, Score: 0.9}}},
	}

	for i, store := range stores {
		p := newTestPipeline(store, &fakeGenerator{genErr: errors.New("always failing")})
		result, err := p.Run(context.Background(), "설치 방법은?", 5, Options{UseGenerator: true})
		if err != nil {
			t.Fatalf("store %d: unexpected error %v", i, err)
		}
		if strings.TrimSpace(result.Answer) == "" {
			t.Errorf("store %d: empty answer", i)
		}
	}
}
