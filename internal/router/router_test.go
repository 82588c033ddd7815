package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvwalker/concierge/internal/intent"
	"github.com/rvwalker/concierge/internal/state"
)

// fakeSession records calls and returns canned data.
type fakeSession struct {
	ops      []string
	reply    string
	callErr  error
	calls    []string
	params   []map[string]interface{}
	closed   bool
	closeErr error
}

func (f *fakeSession) Supports(op string) bool {
	for _, o := range f.ops {
		if o == op {
			return true
		}
	}
	return false
}

func (f *fakeSession) Operations() []string { return f.ops }

func (f *fakeSession) CallTool(_ context.Context, op string, params map[string]interface{}) (string, error) {
	f.calls = append(f.calls, op)
	f.params = append(f.params, params)
	if f.callErr != nil {
		return "", f.callErr
	}
	return f.reply, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return f.closeErr
}

func testDefs() []ToolDefinition {
	return []ToolDefinition{
		{Name: "weather", Command: "true"},
		{Name: "market", Command: "true"},
	}
}

func weatherQuery() intent.Intent {
	return intent.Intent{
		Kind:       intent.KindToolSpecific,
		Confidence: 0.9,
		ToolName:   "weather",
		RawQuery:   "天气",
	}
}

func TestRouteSuccess(t *testing.T) {
	sess := &fakeSession{ops: []string{"query_weather"}, reply: "sunny"}
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		return sess, nil
	}, nil)

	res := r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "sunny", res.Data)
	require.Len(t, sess.calls, 1)
	assert.Equal(t, "query_weather", sess.calls[0])
}

func TestRouteUnregisteredToolIsNotFound(t *testing.T) {
	opened := 0
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		opened++
		return &fakeSession{}, nil
	}, nil)

	in := weatherQuery()
	in.ToolName = "translator"
	res := r.Route(context.Background(), in)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Zero(t, opened, "no connection attempt for an unregistered tool")
}

func TestRouteIntentWithoutToolIsNotFound(t *testing.T) {
	r := newWithOpener(testDefs(), nil, nil, nil)
	in := intent.Intent{Kind: intent.KindChat, Confidence: 0.9, RawQuery: "你好"}
	assert.Equal(t, StatusNotFound, r.Route(context.Background(), in).Status)
}

func TestRouteLazyConnectAndReuse(t *testing.T) {
	opened := 0
	sess := &fakeSession{ops: []string{"query_weather"}, reply: "ok"}
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		opened++
		return sess, nil
	}, nil)

	r.Route(context.Background(), weatherQuery())
	r.Route(context.Background(), weatherQuery())
	assert.Equal(t, 1, opened, "session is reused across calls")
	assert.Len(t, sess.calls, 2)
}

func TestRouteConnectFailureIsRetriedNextTime(t *testing.T) {
	attempts := 0
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("spawn failed")
		}
		return &fakeSession{ops: []string{"query_weather"}, reply: "ok"}, nil
	}, nil)

	res := r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusError, res.Status)

	res = r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, attempts)
}

func TestRouteUnsupportedOperation(t *testing.T) {
	sess := &fakeSession{ops: []string{"something_else"}}
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		return sess, nil
	}, nil)

	res := r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "query_weather")
	assert.Empty(t, sess.calls)
}

func TestRouteCallFailure(t *testing.T) {
	sess := &fakeSession{ops: []string{"query_weather"}, callErr: errors.New("tool crashed")}
	r := newWithOpener(testDefs(), nil, func(context.Context, ToolDefinition) (toolSession, error) {
		return sess, nil
	}, nil)

	res := r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "tool crashed")
}

func TestRouteUsesAmbientState(t *testing.T) {
	sess := &fakeSession{ops: []string{"query_weather"}, reply: "ok"}
	r := newWithOpener(testDefs(), state.NewManager(), func(context.Context, ToolDefinition) (toolSession, error) {
		return sess, nil
	}, nil)

	r.Route(context.Background(), weatherQuery())
	require.Len(t, sess.params, 1)
	// Default ambient location 重庆市永川区 resolves via the substring scan.
	assert.Equal(t, "Chongqing", sess.params[0]["city"])
}

func TestInitializeConnectsAllToolsBestEffort(t *testing.T) {
	opened := map[string]bool{}
	r := newWithOpener(testDefs(), nil, func(_ context.Context, def ToolDefinition) (toolSession, error) {
		if def.Name == "market" {
			return nil, errors.New("market tool missing")
		}
		opened[def.Name] = true
		return &fakeSession{ops: []string{"query_weather"}, reply: "ok"}, nil
	}, nil)

	r.Initialize(context.Background())
	assert.True(t, opened["weather"])

	// The surviving tool works without a reconnect.
	res := r.Route(context.Background(), weatherQuery())
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestCleanupClosesAllSessionsDespiteFailures(t *testing.T) {
	weather := &fakeSession{ops: []string{"query_weather"}, reply: "ok", closeErr: errors.New("stuck")}
	market := &fakeSession{ops: []string{"find_product"}, reply: "ok"}
	r := newWithOpener(testDefs(), nil, func(_ context.Context, def ToolDefinition) (toolSession, error) {
		if def.Name == "weather" {
			return weather, nil
		}
		return market, nil
	}, nil)
	r.Initialize(context.Background())

	r.Cleanup()
	assert.True(t, weather.closed)
	assert.True(t, market.closed)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
}

func TestLoadDefinitionsMissingFileFallsBack(t *testing.T) {
	defs, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDefinitions(), defs)
}

func TestLoadDefinitionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: weather
    command: ./weather-tool
    args: ["--port", "0"]
`), 0o644))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "weather", defs[0].Name)
	assert.Equal(t, "./weather-tool", defs[0].Command)
	assert.Equal(t, []string{"--port", "0"}, defs[0].Args)
}

func TestLoadDefinitionsRejectsMalformedRegistry(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools: {not a list"), 0o644))
	_, err := LoadDefinitions(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tools: []"), 0o644))
	_, err = LoadDefinitions(empty)
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "incomplete.yaml")
	require.NoError(t, os.WriteFile(incomplete, []byte("tools:\n  - name: weather\n"), 0o644))
	_, err = LoadDefinitions(incomplete)
	assert.Error(t, err)
}
