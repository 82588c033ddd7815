package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvwalker/concierge/internal/intent"
	"github.com/rvwalker/concierge/internal/llm"
	"github.com/rvwalker/concierge/internal/state"
)

// forbiddenCompleter fails the test if the pipeline reaches the model.
type forbiddenCompleter struct{ t *testing.T }

func (f *forbiddenCompleter) Complete(context.Context, []llm.Message) (*llm.ChatResponse, error) {
	f.t.Fatal("model must not be consulted for a rule-resolvable query")
	return nil, nil
}

func (f *forbiddenCompleter) GetModel() string { return "forbidden" }

// End to end: a plain weather question resolves through the rules alone and
// routes to the weather tool with a canonical city.
func TestWeatherQueryEndToEnd(t *testing.T) {
	analyzer := intent.NewModelAnalyzer(&forbiddenCompleter{t: t}, nil, nil)
	recognizer := intent.NewRecognizer(nil, intent.NewRuleEngine(), analyzer, nil, nil)

	sess := &fakeSession{ops: []string{"query_weather"}, reply: "明天多云,18到24度"}
	rt := newWithOpener(
		[]ToolDefinition{{Name: "weather", Command: "true"}},
		state.NewManager(),
		func(context.Context, ToolDefinition) (toolSession, error) { return sess, nil },
		nil)

	// Three weather keywords keep the rule verdict above the model cutoff.
	resolved := recognizer.Recognize(context.Background(), "重庆明天天气怎么样,气温多少,会下雨吗")
	require.Equal(t, "weather", resolved.ToolName)
	require.Equal(t, intent.KindToolSpecific, resolved.Kind)

	res := rt.Route(context.Background(), resolved)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "明天多云,18到24度", res.Data)

	require.Len(t, sess.params, 1)
	assert.Equal(t, "Chongqing", sess.params[0]["city"])
}
