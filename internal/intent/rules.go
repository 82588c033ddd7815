package intent

import (
	"regexp"
	"strings"
)

// toolRule binds a tool to the keywords that trigger it. Rules are checked
// in declaration order and the first tool with any keyword hit wins.
type toolRule struct {
	tool     string
	keywords []string
}

// toolRules covers the deployed tool set. Keyword lists are matched by
// substring against the lowercased query.
var toolRules = []toolRule{
	{tool: "weather", keywords: []string{"天气", "气温", "下雨", "温度", "湿度", "阴晴"}},
	{tool: "market", keywords: []string{"商场", "商家", "店铺", "购物", "买东西", "超市", "专卖店"}},
	{tool: "area_search", keywords: []string{"附近", "周边", "区域", "地方", "位置", "怎么走", "地址"}},
}

// commandKeywords mark configuration style requests that carry no tool.
var commandKeywords = []string{"设置", "更改", "修改", "切换", "保存", "重置", "清除", "删除"}

// locationPatterns extract a place name from the query. Go's \w is ASCII
// only, so letter/digit classes are spelled out to cover CJK text. First
// match wins.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`在([\p{L}\p{N}]+)`),
	regexp.MustCompile(`([\p{L}\p{N}]+)(?:附近|周边)`),
	regexp.MustCompile(`去([\p{L}\p{N}]+)`),
}

// RuleEngine classifies a query by keyword lookup alone. It is deterministic
// and fast, and handles the common phrasings without a model round trip.
type RuleEngine struct{}

// NewRuleEngine creates a rule engine over the built-in tool table.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Apply matches the query against the tool and command keyword tables.
// It returns nil when no rule fires; lowercasing is applied for matching
// only and RawQuery always carries the original text.
func (e *RuleEngine) Apply(query string) *Intent {
	lowered := strings.ToLower(query)

	for _, rule := range toolRules {
		hits := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		// Multiple keyword hits raise confidence by 0.1 each, capped at 0.9.
		conf := 0.7
		if hits > 1 {
			conf = 0.7 + 0.1*float64(hits)
			if conf > 0.9 {
				conf = 0.9
			}
		}

		return &Intent{
			Kind:       KindToolSpecific,
			Confidence: conf,
			ToolName:   rule.tool,
			Entities:   extractLocation(query),
			RawQuery:   query,
		}
	}

	for _, kw := range commandKeywords {
		if strings.Contains(lowered, kw) {
			return &Intent{
				Kind:       KindCommand,
				Confidence: 0.65,
				RawQuery:   query,
			}
		}
	}

	return nil
}

func extractLocation(query string) []Entity {
	for _, pat := range locationPatterns {
		m := pat.FindStringSubmatch(query)
		if len(m) > 1 && m[1] != "" {
			return []Entity{{Type: "location", Value: m[1], Confidence: 0.8}}
		}
	}
	return nil
}
