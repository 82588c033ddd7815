// Package intent classifies free-text user queries. It combines a
// deterministic rule pass with a language-model pass and merges the two into
// a single Intent that downstream routing can act on.
package intent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the closed set of intent classifications.
type Kind int

const (
	// KindChat is small talk that needs no tool.
	KindChat Kind = iota
	// KindQuery is an information request that may need a tool.
	KindQuery
	// KindCommand is a system command such as a settings change.
	KindCommand
	// KindToolSpecific explicitly targets one tool.
	KindToolSpecific
	// KindUnknown is the fallback when classification fails.
	KindUnknown
)

var kindNames = map[Kind]string{
	KindChat:         "CHAT",
	KindQuery:        "QUERY",
	KindCommand:      "COMMAND",
	KindToolSpecific: "TOOL_SPECIFIC",
	KindUnknown:      "UNKNOWN",
}

// String returns the wire name of the kind, e.g. "TOOL_SPECIFIC".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKind maps a wire name onto a Kind. Unrecognised names map to
// KindUnknown rather than failing; the model is free-form text underneath.
func ParseKind(name string) Kind {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CHAT":
		return KindChat
	case "QUERY":
		return KindQuery
	case "COMMAND":
		return KindCommand
	case "TOOL_SPECIFIC":
		return KindToolSpecific
	default:
		return KindUnknown
	}
}

// Entity is one extracted slot, e.g. a location. Immutable once created.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Intent is the structured classification of one user query. Instances are
// built by the rule engine, the model analyzer, or the merger and are not
// mutated afterwards.
type Intent struct {
	Kind       Kind
	Confidence float64
	// ToolName is the target tool, empty when no tool is involved.
	ToolName string
	Entities []Entity
	RawQuery string
}

// record is the persisted mapping shape shared with the cache file:
// {"type","confidence","tool_name","entities","raw_query"}.
type record struct {
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	ToolName   *string  `json:"tool_name"`
	Entities   []Entity `json:"entities"`
	RawQuery   string   `json:"raw_query"`
}

// MarshalJSON serialises the intent to its plain-mapping form. An empty tool
// name is written as JSON null so the cache file stays readable by the
// other consumers of the format.
func (in Intent) MarshalJSON() ([]byte, error) {
	rec := record{
		Type:       in.Kind.String(),
		Confidence: in.Confidence,
		Entities:   in.Entities,
		RawQuery:   in.RawQuery,
	}
	if rec.Entities == nil {
		rec.Entities = []Entity{}
	}
	if in.ToolName != "" {
		name := in.ToolName
		rec.ToolName = &name
	}
	return json.Marshal(rec)
}

// UnmarshalJSON restores an intent from its plain-mapping form. Unknown kind
// names fall back to KindUnknown.
func (in *Intent) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("intent: failed to decode record: %w", err)
	}

	in.Kind = ParseKind(rec.Type)
	in.Confidence = rec.Confidence
	in.Entities = rec.Entities
	in.RawQuery = rec.RawQuery
	in.ToolName = ""
	if rec.ToolName != nil && *rec.ToolName != "null" {
		in.ToolName = *rec.ToolName
	}
	return nil
}

// Entity lookup helpers used by routing.

// EntityValue returns the value of the first entity of the given type and
// whether one was present.
func (in Intent) EntityValue(entityType string) (string, bool) {
	for _, e := range in.Entities {
		if strings.EqualFold(e.Type, entityType) {
			return e.Value, true
		}
	}
	return "", false
}

func (in Intent) String() string {
	parts := make([]string, 0, len(in.Entities))
	for _, e := range in.Entities {
		parts = append(parts, fmt.Sprintf("%s:%s(%.2f)", e.Type, e.Value, e.Confidence))
	}
	tool := in.ToolName
	if tool == "" {
		tool = "none"
	}
	return fmt.Sprintf("Intent[%s] tool:%s conf:%.2f entities:[%s]",
		in.Kind, tool, in.Confidence, strings.Join(parts, ", "))
}
