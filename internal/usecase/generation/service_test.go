package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/chat-relay/internal/tools"
)

type fakeBackend struct {
	responses []*Result
	errs      []error
	calls     [][]Turn
	toolSets  [][]tools.Tool
}

func (f *fakeBackend) Complete(_ context.Context, turns []Turn, available []tools.Tool) (*Result, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, turns)
	f.toolSets = append(f.toolSets, available)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return &Result{Text: "fallthrough"}, nil
}

type echoTool struct {
	executed bool
	lastArgs map[string]any
}

func (e *echoTool) Name() string            { return "echo" }
func (e *echoTool) Description() string     { return "echoes input" }
func (e *echoTool) ParameterSchema() string { return `{"type":"object"}` }
func (e *echoTool) Execute(_ context.Context, params map[string]any) (string, error) {
	e.executed = true
	e.lastArgs = params
	v, _ := params["value"].(string)
	return "echo: " + v, nil
}

type failTool struct{}

func (failTool) Name() string            { return "broken" }
func (failTool) Description() string     { return "always fails" }
func (failTool) ParameterSchema() string { return `{"type":"object"}` }
func (failTool) Execute(context.Context, map[string]any) (string, error) {
	return "", errors.New("boom")
}

type fakeEscalator struct {
	calls     int
	summaries []string
}

func (f *fakeEscalator) EscalateOutage(_ context.Context, summary string) error {
	f.calls++
	f.summaries = append(f.summaries, summary)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordGeneration(context.Context, time.Duration, int, bool) {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newService(backend Backend, registry *tools.Registry, escalator Escalator, threshold int) *Service {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return NewService(backend, registry, escalator, threshold, nopMetrics{}, nopLogger{})
}

func TestReply_PlainAnswer(t *testing.T) {
	backend := &fakeBackend{responses: []*Result{{Text: "the answer"}}}
	svc := newService(backend, nil, nil, 0)

	out, err := svc.Reply(context.Background(), "U1", "question?")
	require.NoError(t, err)

	assert.Equal(t, "the answer", out)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, RoleSystem, backend.calls[0][0].Role)
	assert.Contains(t, backend.calls[0][0].Content, "U1")
	assert.Equal(t, "question?", backend.calls[0][1].Content)
}

func TestReply_ConvertsDoubleAsteriskBold(t *testing.T) {
	backend := &fakeBackend{responses: []*Result{{Text: "this is **important** and **bold**"}}}
	svc := newService(backend, nil, nil, 0)

	out, err := svc.Reply(context.Background(), "U1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "this is *important* and *bold*", out)
}

func TestReply_SingleToolRoundTrip(t *testing.T) {
	echo := &echoTool{}
	registry := tools.NewRegistry()
	registry.Register(echo)

	backend := &fakeBackend{responses: []*Result{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "echo", Arguments: map[string]any{"value": "hi"}}}},
		{Text: "answer using tool output"},
	}}
	svc := newService(backend, registry, nil, 0)

	out, err := svc.Reply(context.Background(), "U1", "use the tool")
	require.NoError(t, err)

	assert.Equal(t, "answer using tool output", out)
	assert.True(t, echo.executed)
	require.Len(t, backend.calls, 2)

	// The second call carries the assistant's tool request and its result.
	second := backend.calls[1]
	assert.Equal(t, RoleAssistant, second[2].Role)
	assert.Equal(t, RoleTool, second[3].Role)
	assert.Equal(t, "call-1", second[3].ToolCallID)
	assert.Equal(t, "echo: hi", second[3].Content)

	// No tools offered on the final call, so the backend cannot loop.
	assert.Empty(t, backend.toolSets[1])
}

func TestReply_ToolFailureFedBackAsText(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(failTool{})

	backend := &fakeBackend{responses: []*Result{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "broken", Arguments: map[string]any{}}}},
		{Text: "answered despite tool failure"},
	}}
	svc := newService(backend, registry, nil, 0)

	out, err := svc.Reply(context.Background(), "U1", "try it")
	require.NoError(t, err)

	assert.Equal(t, "answered despite tool failure", out)
	assert.Contains(t, backend.calls[1][3].Content, "error: boom")
}

func TestReply_UnknownToolFedBackAsText(t *testing.T) {
	backend := &fakeBackend{responses: []*Result{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "no_such_tool", Arguments: map[string]any{}}}},
		{Text: "done"},
	}}
	svc := newService(backend, nil, nil, 0)

	_, err := svc.Reply(context.Background(), "U1", "hm")
	require.NoError(t, err)
	assert.Contains(t, backend.calls[1][3].Content, "unknown tool")
}

func TestReply_BackendErrorPropagates(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("unavailable")}}
	svc := newService(backend, nil, nil, 0)

	_, err := svc.Reply(context.Background(), "U1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestReply_EscalatesAtFailureThreshold(t *testing.T) {
	backend := &fakeBackend{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	escalator := &fakeEscalator{}
	svc := newService(backend, nil, escalator, 3)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := svc.Reply(ctx, "U1", "hi")
		require.Error(t, err)
	}

	// Escalate exactly once, on the third consecutive failure.
	assert.Equal(t, 1, escalator.calls)
	assert.Contains(t, escalator.summaries[0], "3 consecutive errors")
}

func TestReply_SuccessResetsFailureStreak(t *testing.T) {
	backend := &fakeBackend{
		errs:      []error{errors.New("down"), errors.New("down"), nil, errors.New("down")},
		responses: []*Result{nil, nil, {Text: "recovered"}},
	}
	escalator := &fakeEscalator{}
	svc := newService(backend, nil, escalator, 3)

	ctx := context.Background()
	_, _ = svc.Reply(ctx, "U1", "a")
	_, _ = svc.Reply(ctx, "U1", "b")

	out, err := svc.Reply(ctx, "U1", "c")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)

	_, err = svc.Reply(ctx, "U1", "d")
	require.Error(t, err)

	assert.Equal(t, 0, escalator.calls, "streak reset must prevent escalation")
}
