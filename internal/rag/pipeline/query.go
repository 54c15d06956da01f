package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KOO-96/chatbot-study/internal/config"
	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/prompt"
	"github.com/KOO-96/chatbot-study/internal/rag/quality"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

// Canned answers for the early-exit branches of the pipeline.
const (
	answerNoDocuments  = "관련된 문서를 찾을 수 없습니다."
	answerNoRelevant   = "제공된 문서에서 질문과 관련된 정보를 찾을 수 없습니다. 다른 질문을 시도해주세요."
	answerNoUsefulInfo = "제공된 문서에서 질문과 관련된 유용한 정보를 찾을 수 없습니다."

	// generationBudget caps the output tokens requested per call.
	generationBudget = 500
	// postProcessMaxLength caps the cleaned generator output before
	// validation; validation itself allows up to the configured maximum.
	postProcessMaxLength = 1000
	// simpleResponseLength caps the combined context block of the
	// deterministic template answer.
	simpleResponseLength = 1000
)

// Input validation failures surfaced to the caller.
var (
	ErrEmptyQuery  = errors.New("query cannot be empty")
	ErrInvalidTopK = errors.New("top_k must be greater than 0")
)

// Options control one pipeline run.
type Options struct {
	// UseGenerator enables the generation branch. When false, or when no
	// generator is configured, the deterministic template answer is built
	// directly from the retrieved contexts.
	UseGenerator bool
	// SystemPrompt overrides the default generation instruction.
	SystemPrompt string
}

// QueryPipeline executes one question-answering request end to end:
// retrieve, filter, generate, validate. Its fallback ladder guarantees a
// non-empty answer whenever retrieval infrastructure is healthy; only bad
// arguments and embedding/search failures propagate as errors.
type QueryPipeline struct {
	embedder  interfaces.Embedder
	store     interfaces.VectorStore
	generator interfaces.Generator // may be nil
	validator *quality.Validator
	cfg       config.PipelineConfig
	log       *logger.Logger
}

// NewQueryPipeline creates a QueryPipeline. The generator is optional and
// can be nil, in which case every run takes the template-answer branch.
func NewQueryPipeline(
	embedder interfaces.Embedder,
	store interfaces.VectorStore,
	generator interfaces.Generator,
	validator *quality.Validator,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *QueryPipeline {
	return &QueryPipeline{
		embedder:  embedder,
		store:     store,
		generator: generator,
		validator: validator,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes the pipeline for one query. The gates run strictly in
// order: input validation, retrieval, score filter, content filter, then
// generation or the template answer. Each early exit produces a canned
// result whose sources carry the last non-empty candidate list, so the
// caller can see what was retrieved even when nothing survived filtering.
func (p *QueryPipeline) Run(ctx context.Context, query string, topK int, opts Options) (*schema.PipelineResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	results, err := p.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		p.log.Warn(fmt.Sprintf("no relevant documents found for query: %s", query))
		return p.cannedResult(query, topK, answerNoDocuments, nil), nil
	}

	scored := p.scoreGate(results)
	if len(scored) == 0 {
		p.log.Warn(fmt.Sprintf("no documents above score threshold %.2f for query: %s", p.cfg.ScoreThreshold, query))
		return p.cannedResult(query, topK, answerNoRelevant, results), nil
	}

	useful := p.contentGate(scored)
	if len(useful) == 0 {
		p.log.Warn(fmt.Sprintf("no usable contexts after content filtering for query: %s", query))
		return p.cannedResult(query, topK, answerNoUsefulInfo, scored), nil
	}

	contexts := make([]string, len(useful))
	for i, r := range useful {
		contexts[i] = r.Text
	}

	answer := p.answer(ctx, query, contexts, opts)

	return &schema.PipelineResult{
		Query:    query,
		Answer:   answer,
		Contexts: contexts,
		Sources:  useful,
		TopK:     topK,
	}, nil
}

// retrieve embeds the query and searches the vector store. Failures here
// propagate: without any candidates there is no safe fallback answer.
func (p *QueryPipeline) retrieve(ctx context.Context, query string, topK int) ([]schema.SearchResult, error) {
	p.log.Info(fmt.Sprintf("starting document search for query: %s, top_k: %d", query, topK))

	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := p.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	p.log.Info(fmt.Sprintf("search completed, documents found: %d", len(results)))
	return results, nil
}

// scoreGate drops results with empty text or a similarity score below the
// configured threshold.
func (p *QueryPipeline) scoreGate(results []schema.SearchResult) []schema.SearchResult {
	kept := make([]schema.SearchResult, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if r.Score < p.cfg.ScoreThreshold {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// contentGate drops results whose trimmed text is too short to carry
// meaning or is an extraction artifact starting with a period.
func (p *QueryPipeline) contentGate(results []schema.SearchResult) []schema.SearchResult {
	kept := make([]schema.SearchResult, 0, len(results))
	for _, r := range results {
		trimmed := strings.TrimSpace(r.Text)
		if utf8.RuneCountInString(trimmed) < p.cfg.MinContextLength {
			continue
		}
		if strings.HasPrefix(trimmed, ".") {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// answer produces the final answer text for the surviving contexts. It
// never fails: any generation problem resolves into the deterministic
// template answer.
func (p *QueryPipeline) answer(ctx context.Context, query string, contexts []string, opts Options) string {
	if !opts.UseGenerator || p.generator == nil {
		p.log.Info(fmt.Sprintf("generating simple response without LLM, contexts: %d", len(contexts)))
		return prompt.BuildSimpleResponse(query, contexts, simpleResponseLength)
	}

	answer, err := p.generateAnswer(ctx, query, contexts, opts.SystemPrompt)
	if err != nil {
		p.log.Error(fmt.Sprintf("LLM generation failed: %v, falling back to simple response", err))
		return prompt.BuildSimpleResponse(query, contexts, simpleResponseLength)
	}
	return answer
}

// generateAnswer calls the generator and runs the acceptance ladder over
// its output. The returned error covers generator failures only; quality
// rejections are resolved internally into the template answer.
func (p *QueryPipeline) generateAnswer(ctx context.Context, query string, contexts []string, systemPrompt string) (string, error) {
	if err := p.generator.Warmup(ctx); err != nil {
		return "", fmt.Errorf("generator warmup failed: %w", err)
	}

	p.log.Info(fmt.Sprintf("generating answer using LLM, contexts: %d", len(contexts)))

	queryPrompt := prompt.BuildQueryPrompt(query, contexts, systemPrompt, p.cfg.MaxContextLength)
	raw, err := p.generator.Generate(ctx, queryPrompt, interfaces.GenerateOptions{
		MaxTokens: generationBudget,
	})
	if err != nil {
		return "", err
	}

	return p.acceptAnswer(query, raw, contexts), nil
}

// acceptAnswer is the fallback ladder over one raw generator output. Each
// gate targets one observed failure mode of small local models: looping
// output, over-cautious refusals, and answers unsupported by the contexts.
func (p *QueryPipeline) acceptAnswer(query, raw string, contexts []string) string {
	cleaned := p.validator.PostProcessAnswer(raw, postProcessMaxLength)

	if quality.ContainsNegativePhrase(cleaned) {
		// A refusal while the contexts contain the query's own keywords
		// means the generator wrongly denied available information.
		if contextsContainKeywords(query, contexts) {
			p.log.Warn("LLM claims information not found but contexts contain query keywords")
			p.logRejected(raw)
			return prompt.BuildSimpleResponse(query, contexts, simpleResponseLength)
		}

		verdict := p.validator.ValidateAnswer(cleaned, p.cfg.MinAnswerLength, p.cfg.MaxAnswerLength, contexts)
		if !verdict.IsValid {
			p.log.Warn(fmt.Sprintf("refusal failed quality check: %s", verdict.Reason))
			p.logRejected(raw)
			return prompt.BuildSimpleResponse(query, contexts, simpleResponseLength)
		}
		return cleaned
	}

	verdict := p.validator.ValidateAnswer(cleaned, p.cfg.MinAnswerLength, p.cfg.MaxAnswerLength, contexts)
	if verdict.IsValid {
		return cleaned
	}

	// Small-model tolerance: a non-trivial, non-degenerate raw output is
	// preferable to discarding the generation outright.
	rawTrimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(rawTrimmed) >= p.cfg.MinAnswerLength && !p.validator.DetectRepetition(raw) {
		p.log.Info("using original answer despite quality check failure")
		return raw
	}

	p.log.Warn(fmt.Sprintf("generated answer failed quality check: %s", verdict.Reason))
	p.logRejected(raw)
	return prompt.BuildSimpleResponse(query, contexts, simpleResponseLength)
}

// logRejected records a prefix of a rejected answer for diagnosis.
func (p *QueryPipeline) logRejected(raw string) {
	runes := []rune(raw)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	p.log.Warn(fmt.Sprintf("rejected answer (first 200 chars): %s", string(runes)))
}

// cannedResult assembles an early-exit result. sources carries the last
// non-empty candidate list seen before the exit.
func (p *QueryPipeline) cannedResult(query string, topK int, answer string, sources []schema.SearchResult) *schema.PipelineResult {
	if sources == nil {
		sources = []schema.SearchResult{}
	}
	return &schema.PipelineResult{
		Query:    query,
		Answer:   answer,
		Contexts: []string{},
		Sources:  sources,
		TopK:     topK,
	}
}

// contextsContainKeywords reports whether any of the query's words of more
// than one character appears verbatim in the joined contexts,
// case-insensitively.
func contextsContainKeywords(query string, contexts []string) bool {
	contextText := strings.ToLower(strings.Join(contexts, " "))
	for _, word := range quality.ExtractWords(strings.ToLower(query)) {
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		if strings.Contains(contextText, word) {
			return true
		}
	}
	return false
}
