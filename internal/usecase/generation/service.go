package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/tools"
)

// Turn roles on the conversation sent to the backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the backend.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Turn is one message in the conversation sent to the backend.
type Turn struct {
	Role       string
	Content    string
	ToolCallID string     // set on tool-result turns
	ToolCalls  []ToolCall // set on assistant turns that requested tools
}

// Result is the backend's answer to a completion request.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// Backend is a chat-completion endpoint.
type Backend interface {
	Complete(ctx context.Context, turns []Turn, available []tools.Tool) (*Result, error)
}

// Escalator pages an operator when the backend looks down.
type Escalator interface {
	EscalateOutage(ctx context.Context, summary string) error
}

// MetricsRecorder records generation metrics.
type MetricsRecorder interface {
	RecordGeneration(ctx context.Context, duration time.Duration, toolCalls int, success bool)
}

// Logger defines the contract for logging within use cases.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

const systemPrompt = "You are a helpful assistant replying inside a team chat workspace. " +
	"Keep answers short and direct. Format with workspace markdown: single asterisks " +
	"for bold, no headings. The requesting user's ID is %s."

// Service orchestrates reply generation: one completion call, at most one
// round of tool execution, then a final completion. The backend is never
// allowed to loop on tools.
type Service struct {
	backend   Backend
	registry  *tools.Registry
	escalator Escalator
	threshold int
	metrics   MetricsRecorder
	logger    Logger

	mu       sync.Mutex
	failures int
}

// NewService creates a generation service. escalator may be nil when
// escalation is disabled.
func NewService(backend Backend, registry *tools.Registry, escalator Escalator, failureThreshold int, metrics MetricsRecorder, logger Logger) *Service {
	return &Service{
		backend:   backend,
		registry:  registry,
		escalator: escalator,
		threshold: failureThreshold,
		metrics:   metrics,
		logger:    logger,
	}
}

// Reply generates an answer to a user message.
func (s *Service) Reply(ctx context.Context, userID, text string) (string, error) {
	start := time.Now()

	answer, toolCalls, err := s.generate(ctx, userID, text)
	s.metrics.RecordGeneration(ctx, time.Since(start), toolCalls, err == nil)

	if err != nil {
		s.recordFailure(ctx, err)
		return "", err
	}

	s.resetFailures()
	return sanitize(answer), nil
}

func (s *Service) generate(ctx context.Context, userID, text string) (string, int, error) {
	turns := []Turn{
		{Role: RoleSystem, Content: fmt.Sprintf(systemPrompt, userID)},
		{Role: RoleUser, Content: text},
	}

	available := s.registry.All()
	res, err := s.backend.Complete(ctx, turns, available)
	if err != nil {
		return "", 0, fmt.Errorf("completion: %w", err)
	}

	if len(res.ToolCalls) == 0 {
		return res.Text, 0, nil
	}

	// One tool round: run the requested tools, feed the results back, and
	// take whatever the second call returns as final.
	turns = append(turns, Turn{
		Role:      RoleAssistant,
		Content:   res.Text,
		ToolCalls: res.ToolCalls,
	})
	for _, call := range res.ToolCalls {
		turns = append(turns, Turn{
			Role:       RoleTool,
			ToolCallID: call.ID,
			Content:    s.runTool(ctx, call),
		})
	}

	final, err := s.backend.Complete(ctx, turns, nil)
	if err != nil {
		return "", len(res.ToolCalls), fmt.Errorf("completion after tools: %w", err)
	}
	return final.Text, len(res.ToolCalls), nil
}

// runTool executes one tool call. Tool failures become result text rather
// than aborting the reply: the backend can still answer around them.
func (s *Service) runTool(ctx context.Context, call ToolCall) string {
	tool, ok := s.registry.Get(call.Name)
	if !ok {
		s.logger.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}

	out, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("error: %v", err)
	}

	s.logger.Debug("tool executed", "tool", call.Name)
	return out
}

func (s *Service) recordFailure(ctx context.Context, cause error) {
	s.mu.Lock()
	s.failures++
	hit := s.escalator != nil && s.threshold > 0 && s.failures == s.threshold
	count := s.failures
	s.mu.Unlock()

	s.logger.Error("generation failed", "consecutiveFailures", count, "error", cause)

	if hit {
		summary := fmt.Sprintf("text generation failing: %d consecutive errors, last: %v", count, cause)
		if err := s.escalator.EscalateOutage(ctx, summary); err != nil {
			s.logger.Error("outage escalation failed", "error", err)
		}
	}
}

func (s *Service) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

// sanitize converts common markdown to the workspace's mrkdwn dialect.
// Backends emit double-asterisk bold; the workspace renders single.
func sanitize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "**", "*"))
}
