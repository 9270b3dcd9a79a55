package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []*entity.InboundEvent
	full   bool
}

func (f *fakeSubmitter) Submit(ev *entity.InboundEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSubmitter) submitted() []*entity.InboundEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.InboundEvent(nil), f.events...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newEventsFixture() (*EventsHandler, *fakeSubmitter) {
	pool := &fakeSubmitter{}
	return NewEventsHandler(pool, nopLogger{}), pool
}

func postEvents(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEventsHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newEventsFixture()

	req := httptest.NewRequest(http.MethodGet, "/webhook/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsHandler_InvalidJSON(t *testing.T) {
	h, pool := newEventsFixture()

	rec := postEvents(h, "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pool.submitted())
}

func TestEventsHandler_ChallengeEcho(t *testing.T) {
	h, pool := newEventsFixture()

	rec := postEvents(h, `{"type":"url_verification","challenge":"abc123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc123"}`, rec.Body.String())
	assert.Empty(t, pool.submitted())
}

func TestEventsHandler_MessageEnqueued(t *testing.T) {
	h, pool := newEventsFixture()

	body := `{
		"type": "event_callback",
		"event_id": "Ev001",
		"event": {
			"type": "message",
			"channel": "D123",
			"channel_type": "im",
			"user": "U111",
			"ts": "1700000000.000100",
			"text": "hello"
		}
	}`
	rec := postEvents(h, body)

	require.Equal(t, http.StatusOK, rec.Code)
	events := pool.submitted()
	require.Len(t, events, 1)
	assert.Equal(t, "Ev001", events[0].DeliveryID)
	assert.Equal(t, entity.KindMessage, events[0].Kind)
	assert.Equal(t, "D123", events[0].ChannelID)
}

func TestEventsHandler_ThreadStartedEnqueued(t *testing.T) {
	h, pool := newEventsFixture()

	body := `{
		"type": "event_callback",
		"event_id": "Ev002",
		"event": {
			"type": "assistant_thread_started",
			"assistant_thread": {
				"user_id": "U222",
				"channel_id": "D456",
				"thread_ts": "1700000001.000200"
			}
		}
	}`
	rec := postEvents(h, body)

	require.Equal(t, http.StatusOK, rec.Code)
	events := pool.submitted()
	require.Len(t, events, 1)
	assert.Equal(t, entity.KindThreadStarted, events[0].Kind)
	assert.Equal(t, "U222", events[0].UserID)
}

func TestEventsHandler_NonEventPayloadAcknowledged(t *testing.T) {
	h, pool := newEventsFixture()

	rec := postEvents(h, `{"type":"app_rate_limited","team_id":"T1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pool.submitted())
}

func TestEventsHandler_QueueFullStillAcknowledged(t *testing.T) {
	h, pool := newEventsFixture()
	pool.full = true

	body := `{
		"type": "event_callback",
		"event_id": "Ev003",
		"event": {"type": "message", "channel": "D123", "user": "U1", "ts": "1.2", "text": "hi"}
	}`
	rec := postEvents(h, body)

	// A full queue is the relay's problem, not the platform's. Always 200.
	assert.Equal(t, http.StatusOK, rec.Code)
}
