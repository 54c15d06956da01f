// Package prompt renders the instruction, context block, and question into
// the strings sent to the generation model, plus the deterministic
// template answer used when generation is skipped, fails, or is rejected.
// Everything here is a pure string transform; nothing calls the generator.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt instructs the generator to answer strictly from the supplied
// contexts and to refuse only when genuinely unsupported.
const SystemPrompt = `당신은 주어진 문서만을 기반으로 답변하는 AI 어시스턴트입니다.

절대적인 규칙 (반드시 지켜야 함):
1. **문서에 나온 내용만 그대로 사용하세요.** 문서에 없는 설명, 해석, 추론을 추가하지 마세요.
2. **문서에 나온 항목, 구성 요소를 나열하거나 인용하세요.** 각 항목에 대한 추가 설명을 만들지 마세요.
3. **표 형식 데이터에서 항목 이름과 설명을 그대로 사용하세요.** 새로운 해석이나 설명을 만들지 마세요.
4. **질문과 관련된 내용이 문서에 있으면 문서에 나온 항목들을 나열하여 답변하세요.**
5. **문서 내용과 질문이 정말 관련이 없을 때만 "제공된 문서에서 해당 질문에 대한 정보를 찾을 수 없습니다."라고 답변하세요.**
6. **추측, 일반 지식, 외부 정보를 절대 사용하지 마세요.** 문서에 없는 내용을 만들어내거나 추론하지 마세요.
7. **답변은 간결하게 작성하세요.** (최대 300자 이내)
8. **같은 내용을 반복하지 마세요.**
9. **문서에 나온 용어와 개념을 정확히 그대로 사용하세요.**`

// NoInformationFound is the template answer when no contexts are available.
const NoInformationFound = "제공된 문서에서 질문과 관련된 정보를 찾을 수 없습니다."

const queryPromptFormat = `%s

=== 참고 문서 내용 (이 내용만 사용하세요) ===
%s
==========================================

사용자 질문: %s

**중요 지시사항**:
1. 위 문서 내용을 **꼼꼼히 읽고 분석**하세요. 표 형식 데이터도 포함됩니다.
2. 문서에 나온 **항목 이름과 설명을 그대로 사용**하세요. 새로운 설명을 만들지 마세요.
3. 질문과 관련된 내용이 문서에 있으면 **문서에 나온 항목들을 나열**하여 답변하세요.
4. 각 항목에 대한 추가 설명이나 해석을 만들지 마세요. 문서에 나온 내용만 사용하세요.
5. 문서에 관련 정보가 **정말 없을 때만** "제공된 문서에서 해당 질문에 대한 정보를 찾을 수 없습니다."라고 답변하세요.
6. 답변은 간결하게 작성하세요 (최대 300자).

답변:`

const simpleResponseFormat = `질문: %s

제공된 문서에서 찾은 관련 정보:

%s

참고: 위 정보는 제공된 문서에서 추출한 내용입니다. 더 정확한 답변을 원하시면 LLM을 사용하는 옵션을 활성화해주세요.`

// BuildQueryPrompt interpolates the system instruction, the contexts, and
// the question into the generation prompt. Contexts are joined with a blank
// line and truncated with an ellipsis marker when they exceed
// maxContextLength characters. An empty systemPrompt selects the default.
func BuildQueryPrompt(query string, contexts []string, systemPrompt string, maxContextLength int) string {
	combined := strings.Join(contexts, "\n\n")
	combined = truncate(combined, maxContextLength)

	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	return fmt.Sprintf(queryPromptFormat, systemPrompt, combined, query)
}

// BuildSimpleResponse renders the deterministic fallback answer directly
// from the retrieved contexts, without any generator involvement. The first
// three contexts are trimmed, collapsed, individually capped at a third of
// maxContextLength, and numbered under the question.
func BuildSimpleResponse(query string, contexts []string, maxContextLength int) string {
	if len(contexts) == 0 {
		return NoInformationFound
	}

	topContexts := contexts
	if len(topContexts) > 3 {
		topContexts = topContexts[:3]
	}

	cleaned := make([]string, 0, len(topContexts))
	for i, ctx := range topContexts {
		lines := make([]string, 0)
		for _, line := range strings.Split(strings.TrimSpace(ctx), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		body := truncate(strings.Join(lines, "\n"), maxContextLength/3)
		cleaned = append(cleaned, fmt.Sprintf("[문서 %d]\n%s", i+1, body))
	}

	return fmt.Sprintf(simpleResponseFormat, query, strings.Join(cleaned, "\n\n"))
}

// truncate cuts s to at most limit characters, appending an ellipsis marker
// when anything was removed.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
