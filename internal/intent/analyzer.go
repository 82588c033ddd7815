package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/rvwalker/concierge/internal/llm"
)

// analyzerSystemPrompt instructs the model to emit a single JSON object
// describing the user's intent. The wording stays in the deployment
// language so the model reads the queries natively.
const analyzerSystemPrompt = `你是一个意图分析助手。分析用户输入,判断用户的意图类型,并输出JSON格式的结果。

意图类型说明:
- CHAT: 普通聊天、问候、闲聊
- QUERY: 查询信息,如天气、商品、地点等
- COMMAND: 设置或修改系统配置的指令
- TOOL_SPECIFIC: 明确需要调用某个工具完成的请求
- UNKNOWN: 无法判断的意图

可用工具:
- weather: 查询天气信息
- market: 查询商场商品和店铺信息
- area_search: 搜索附近的地点和设施

输出格式:
{
  "intent_type": "意图类型",
  "confidence": 0.0到1.0之间的置信度,
  "tool_name": "工具名称,不需要工具时为null",
  "entities": [{"type": "实体类型", "value": "实体值", "confidence": 置信度}],
  "reasoning": "简要说明判断依据"
}

只输出JSON,不要输出其他内容。`

// modelReply mirrors the JSON object the analyzer prompt asks for. Pointer
// fields distinguish absent from zero.
type modelReply struct {
	IntentType string        `json:"intent_type"`
	Confidence *float64      `json:"confidence"`
	ToolName   string        `json:"tool_name"`
	Entities   []replyEntity `json:"entities"`
	Reasoning  string        `json:"reasoning"`
}

type replyEntity struct {
	Type       string   `json:"type"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// ModelAnalyzer classifies queries the rules cannot, by asking a chat model
// for a structured verdict. Failures degrade to a low-confidence UNKNOWN
// intent rather than an error: the pipeline must keep answering even when
// the model is down.
type ModelAnalyzer struct {
	completer llm.ChatCompleter
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewModelAnalyzer wraps a chat completer. limiter may be nil to disable
// rate limiting.
func NewModelAnalyzer(completer llm.ChatCompleter, limiter *rate.Limiter, logger *log.Logger) *ModelAnalyzer {
	if logger == nil {
		logger = log.New(os.Stderr, "analyzer: ", log.LstdFlags)
	}
	return &ModelAnalyzer{completer: completer, limiter: limiter, logger: logger}
}

// Analyze asks the model to classify text, giving it at most the three most
// recent conversation turns as context. It always returns a usable intent.
func (a *ModelAnalyzer) Analyze(ctx context.Context, text string, history []llm.Message) Intent {
	fallback := Intent{Kind: KindUnknown, Confidence: 0.3, RawQuery: text}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			a.logger.Printf("rate limiter: %v", err)
			return fallback
		}
	}

	messages := []llm.Message{{Role: "system", Content: analyzerSystemPrompt}}
	if len(history) > 0 {
		if len(history) > 3 {
			history = history[len(history)-3:]
		}
		var b strings.Builder
		b.WriteString("对话上下文:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		messages = append(messages, llm.Message{Role: "user", Content: b.String()})
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("请分析以下用户输入的意图:\n%q", text),
	})

	resp, err := a.completer.Complete(ctx, messages)
	if err != nil {
		a.logger.Printf("model analysis failed: %v", err)
		return fallback
	}

	intent, err := parseModelReply(resp.Content, text)
	if err != nil {
		a.logger.Printf("unparseable model reply: %v", err)
		return fallback
	}
	return intent
}

// parseModelReply extracts the JSON object from the model output and maps
// it to an Intent. Models wrap JSON in prose and code fences often enough
// that the object is located by brace balance rather than trusting the
// whole reply.
func parseModelReply(content, rawQuery string) (Intent, error) {
	payload := extractJSON(content)
	if payload == "" {
		return Intent{}, fmt.Errorf("no JSON object in reply")
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return Intent{}, fmt.Errorf("decode reply: %w", err)
	}

	intent := Intent{
		Kind:       ParseKind(reply.IntentType),
		Confidence: 0.5,
		RawQuery:   rawQuery,
	}
	if reply.Confidence != nil {
		intent.Confidence = *reply.Confidence
	}
	if reply.ToolName != "" && reply.ToolName != "null" {
		intent.ToolName = reply.ToolName
	}
	for _, e := range reply.Entities {
		ent := Entity{Type: e.Type, Value: e.Value, Confidence: 0.5}
		if ent.Type == "" {
			ent.Type = "unknown"
		}
		if e.Confidence != nil {
			ent.Confidence = *e.Confidence
		}
		intent.Entities = append(intent.Entities, ent)
	}
	return intent, nil
}

// extractJSON returns the first balanced top-level JSON object in s, or ""
// when none exists. Braces inside string literals are skipped.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
