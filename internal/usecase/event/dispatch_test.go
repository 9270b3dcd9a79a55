package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/persistence/memory"
)

type fakePoster struct {
	mu    sync.Mutex
	posts []postedMessage
	err   error
	seq   int
}

type postedMessage struct {
	channel  string
	threadTS string
	text     string
}

func (f *fakePoster) PostReply(_ context.Context, channelID, threadTS, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.seq++
	f.posts = append(f.posts, postedMessage{channel: channelID, threadTS: threadTS, text: text})
	return fmt.Sprintf("100.%02d", f.seq), nil
}

func (f *fakePoster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakePoster) last() postedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[len(f.posts)-1]
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Reply(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeNames struct {
	names map[string]string
	err   error
}

func (f *fakeNames) PreferredName(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.names[userID], nil
}

type nopMetrics struct{}

func (nopMetrics) RecordEventReceived(context.Context, string)        {}
func (nopMetrics) RecordEventIgnored(context.Context, string, string) {}
func (nopMetrics) RecordPost(context.Context, string, bool)           {}
func (nopMetrics) AddQueueDepth(context.Context, int64)               {}
func (nopMetrics) RecordEventDropped(context.Context)                 {}
func (nopMetrics) RecordSweep(context.Context, int)                   {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fixture struct {
	dispatcher *Dispatcher
	store      *memory.DedupStore
	poster     *fakePoster
	generator  *fakeGenerator
	names      *fakeNames
}

func newFixture() *fixture {
	store := memory.NewDedupStore()
	poster := &fakePoster{}
	generator := &fakeGenerator{answer: "generated answer"}
	names := &fakeNames{names: map[string]string{"U1": "Jamie"}}

	return &fixture{
		dispatcher: NewDispatcher(store, poster, generator, names, nopMetrics{}, nopLogger{}, "UBOT"),
		store:      store,
		poster:     poster,
		generator:  generator,
		names:      names,
	}
}

func threadStarted(deliveryID, channel, ts, user string) *entity.InboundEvent {
	return &entity.InboundEvent{
		DeliveryID: deliveryID,
		Kind:       entity.KindThreadStarted,
		ChannelID:  channel,
		ThreadTS:   ts,
		TS:         ts,
		UserID:     user,
	}
}

func directMessage(deliveryID, channel, ts, threadTS, user, text string) *entity.InboundEvent {
	return &entity.InboundEvent{
		DeliveryID:  deliveryID,
		Kind:        entity.KindMessage,
		ChannelID:   channel,
		ChannelKind: entity.ChannelDirectMessage,
		TS:          ts,
		ThreadTS:    threadTS,
		UserID:      user,
		Text:        text,
	}
}

func mention(deliveryID, channel, ts, clientMsgID, text string) *entity.InboundEvent {
	return &entity.InboundEvent{
		DeliveryID:  deliveryID,
		Kind:        entity.KindMention,
		ChannelID:   channel,
		ChannelKind: entity.ChannelShared,
		TS:          ts,
		UserID:      "U1",
		ClientMsgID: clientMsgID,
		Text:        text,
	}
}

func TestDispatch_ThreadStartedGreetsWithName(t *testing.T) {
	f := newFixture()

	outcome, err := f.dispatcher.Execute(context.Background(), threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	assert.Equal(t, ActionGreeted, outcome.Action)
	require.Equal(t, 1, f.poster.count())
	assert.Equal(t, "Hello Jamie, how can I help you today?", f.poster.last().text)
	assert.Equal(t, "1.00", f.poster.last().threadTS)
}

func TestDispatch_ThreadStartedGreetsAnonymouslyWithoutName(t *testing.T) {
	f := newFixture()

	_, err := f.dispatcher.Execute(context.Background(), threadStarted("Ev1", "D1", "1.00", "U-unknown"))
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help you today?", f.poster.last().text)
}

func TestDispatch_ThreadStartedNameLookupFailureStillGreets(t *testing.T) {
	f := newFixture()
	f.names.err = errors.New("directory down")

	outcome, err := f.dispatcher.Execute(context.Background(), threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	assert.Equal(t, ActionGreeted, outcome.Action)
	assert.Equal(t, "Hello! How can I help you today?", f.poster.last().text)
}

func TestDispatch_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	outcome, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonDuplicateDelivery, outcome.Reason)
	assert.Equal(t, 1, f.poster.count())
}

func TestDispatch_SecondThreadStartedDeliveryDoesNotGreetAgain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Same thread arriving under two distinct delivery IDs.
	_, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	outcome, err := f.dispatcher.Execute(ctx, threadStarted("Ev2", "D1", "1.00", "U1"))
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, 1, f.poster.count())
}

func TestDispatch_GreetingPostFailureReleasesClaim(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.poster.err = errors.New("rate limited")
	_, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.Error(t, err)

	// A redelivery after the failure can greet.
	f.poster.err = nil
	outcome, err := f.dispatcher.Execute(ctx, threadStarted("Ev2", "D1", "1.00", "U1"))
	require.NoError(t, err)
	assert.Equal(t, ActionGreeted, outcome.Action)
	assert.Equal(t, 1, f.poster.count())
}

func TestDispatch_BotMessagesIgnored(t *testing.T) {
	f := newFixture()

	ev := directMessage("Ev1", "D1", "2.00", "", "U1", "hi")
	ev.BotOrigin = true

	outcome, err := f.dispatcher.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonBotOrigin, outcome.Reason)
	assert.Equal(t, 0, f.poster.count())
	assert.Equal(t, 0, f.generator.calls)
}

func TestDispatch_OwnReplyEchoIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Greet, then feed the echo of our own greeting back in without a
	// bot marker or an author ID. Only the recorded timestamp gives the
	// echo away.
	_, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	echo := directMessage("Ev2", "D1", "100.01", "1.00", "", "Hello Jamie, how can I help you today?")

	outcome, err := f.dispatcher.Execute(ctx, echo)
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonOwnReply, outcome.Reason)
	assert.Equal(t, 1, f.poster.count())
}

func TestDispatch_SelfAuthoredMessageIgnored(t *testing.T) {
	f := newFixture()

	// Authored by the relay itself, no bot marker, and a timestamp the
	// reply set has never seen (as after a restart). The author check
	// alone must stop the self-reply loop.
	ev := directMessage("Ev1", "D1", "7.00", "", "UBOT", "Hello! How can I help you today?")

	outcome, err := f.dispatcher.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonBotOrigin, outcome.Reason)
	assert.Equal(t, 0, f.poster.count())
	assert.Equal(t, 0, f.generator.calls)
}

func TestDispatch_SelfAuthoredMentionIgnored(t *testing.T) {
	f := newFixture()

	ev := mention("Ev1", "C1", "8.00", "cm-self", "<@UBOT> hello")
	ev.UserID = "<@UBOT|relay>"

	outcome, err := f.dispatcher.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonBotOrigin, outcome.Reason)
	assert.Equal(t, 0, f.poster.count())
}

func TestDispatch_FirstDirectMessageGreetsInsteadOfReplying(t *testing.T) {
	f := newFixture()

	outcome, err := f.dispatcher.Execute(context.Background(), directMessage("Ev1", "D1", "2.00", "", "U1", "hello there"))
	require.NoError(t, err)

	assert.Equal(t, ActionGreeted, outcome.Action)
	assert.Equal(t, 0, f.generator.calls, "the greeting turn must not invoke generation")
	assert.Equal(t, "Hello Jamie, how can I help you today?", f.poster.last().text)
}

func TestDispatch_GreetedThreadGetsGeneratedReply(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dispatcher.Execute(ctx, threadStarted("Ev1", "D1", "1.00", "U1"))
	require.NoError(t, err)

	outcome, err := f.dispatcher.Execute(ctx, directMessage("Ev2", "D1", "2.00", "1.00", "U1", "what is the answer?"))
	require.NoError(t, err)

	assert.Equal(t, ActionReplied, outcome.Action)
	assert.Equal(t, 1, f.generator.calls)
	assert.Equal(t, "generated answer", f.poster.last().text)
	assert.Equal(t, "1.00", f.poster.last().threadTS, "reply must land in the user's thread")
}

func TestDispatch_ThreadedFollowUpRepliesWithoutGreeting(t *testing.T) {
	f := newFixture()

	// A threaded message never triggers the greeting path even if the
	// thread was never greeted.
	outcome, err := f.dispatcher.Execute(context.Background(), directMessage("Ev1", "D1", "3.00", "1.00", "U1", "follow-up"))
	require.NoError(t, err)

	assert.Equal(t, ActionReplied, outcome.Action)
	assert.Equal(t, 1, f.generator.calls)
}

func TestDispatch_ChannelMessageWithoutMentionIgnored(t *testing.T) {
	f := newFixture()

	ev := directMessage("Ev1", "C1", "2.00", "", "U1", "just chatting")
	ev.ChannelKind = entity.ChannelShared

	outcome, err := f.dispatcher.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, ActionIgnored, outcome.Action)
	assert.Equal(t, ReasonChannelMessage, outcome.Reason)
}

func TestDispatch_MessageSubtypeIgnored(t *testing.T) {
	f := newFixture()

	ev := directMessage("Ev1", "D1", "2.00", "1.00", "U1", "edited text")
	ev.Subtype = "message_changed"

	outcome, err := f.dispatcher.Execute(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, ReasonSubtype, outcome.Reason)
	assert.Equal(t, 0, f.generator.calls)
}

func TestDispatch_EmptyDirectMessageIgnored(t *testing.T) {
	f := newFixture()

	outcome, err := f.dispatcher.Execute(context.Background(), directMessage("Ev1", "D1", "2.00", "1.00", "U1", "   "))
	require.NoError(t, err)

	assert.Equal(t, ReasonEmptyText, outcome.Reason)
}

func TestDispatch_MentionRepliesInThread(t *testing.T) {
	f := newFixture()

	outcome, err := f.dispatcher.Execute(context.Background(), mention("Ev1", "C1", "5.00", "msg-1", "<@UBOT> what time is it?"))
	require.NoError(t, err)

	assert.Equal(t, ActionReplied, outcome.Action)
	assert.Equal(t, "5.00", f.poster.last().threadTS)
	assert.Equal(t, "generated answer", f.poster.last().text)
}

func TestDispatch_MentionDedupAcrossDeliveryIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// The same mention redelivered under a fresh delivery ID shares its
	// client message ID.
	_, err := f.dispatcher.Execute(ctx, mention("Ev1", "C1", "5.00", "msg-1", "<@UBOT> hello"))
	require.NoError(t, err)

	outcome, err := f.dispatcher.Execute(ctx, mention("Ev2", "C1", "5.00", "msg-1", "<@UBOT> hello"))
	require.NoError(t, err)

	assert.Equal(t, ReasonDuplicateMention, outcome.Reason)
	assert.Equal(t, 1, f.poster.count())
	assert.Equal(t, 1, f.generator.calls)
}

func TestDispatch_MentionWithoutClientMsgIDFallsBackToTimestamp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dispatcher.Execute(ctx, mention("Ev1", "C1", "5.00", "", "<@UBOT> hello"))
	require.NoError(t, err)

	outcome, err := f.dispatcher.Execute(ctx, mention("Ev2", "C1", "5.00", "", "<@UBOT> hello"))
	require.NoError(t, err)

	assert.Equal(t, ReasonDuplicateMention, outcome.Reason)
	assert.Equal(t, 1, f.poster.count())
}

func TestDispatch_BareMentionPromptsForText(t *testing.T) {
	f := newFixture()

	outcome, err := f.dispatcher.Execute(context.Background(), mention("Ev1", "C1", "5.00", "msg-1", "<@UBOT>"))
	require.NoError(t, err)

	assert.Equal(t, ActionReplied, outcome.Action)
	assert.Equal(t, "Could you repeat your message?", f.poster.last().text)
	assert.Equal(t, 0, f.generator.calls)
}

func TestDispatch_MentionPostFailureReleasesClaim(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.poster.err = errors.New("server error")
	_, err := f.dispatcher.Execute(ctx, mention("Ev1", "C1", "5.00", "msg-1", "<@UBOT> hello"))
	require.Error(t, err)

	f.poster.err = nil
	outcome, err := f.dispatcher.Execute(ctx, mention("Ev2", "C1", "5.00", "msg-1", "<@UBOT> hello"))
	require.NoError(t, err)
	assert.Equal(t, ActionReplied, outcome.Action)
}

func TestDispatch_GenerationFailurePostsApology(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("backend down")

	outcome, err := f.dispatcher.Execute(context.Background(), directMessage("Ev1", "D1", "2.00", "1.00", "U1", "hello"))
	require.NoError(t, err)

	assert.Equal(t, ActionReplied, outcome.Action)
	assert.Equal(t, apologyText, f.poster.last().text)
}

func TestDispatch_EmptyGenerationPostsRepeatPrompt(t *testing.T) {
	f := newFixture()
	f.generator.answer = "  "

	_, err := f.dispatcher.Execute(context.Background(), directMessage("Ev1", "D1", "2.00", "1.00", "U1", "hello"))
	require.NoError(t, err)

	assert.Equal(t, repeatText, f.poster.last().text)
}

func TestDispatch_ConcurrentGreetingRaceProducesSingleGreeting(t *testing.T) {
	f := newFixture()

	// A thread_started and the thread's first message race; exactly one
	// greeting may appear.
	const workers = 16
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var ev *entity.InboundEvent
			if i%2 == 0 {
				ev = threadStarted(fmt.Sprintf("Ev-ts-%d", i), "D1", "1.00", "U1")
			} else {
				ev = directMessage(fmt.Sprintf("Ev-msg-%d", i), "D1", "1.00", "", "U1", "hello")
			}
			_, err := f.dispatcher.Execute(context.Background(), ev)
			assert.NoError(t, err)
		}(i)
	}

	close(start)
	wg.Wait()

	greetings := 0
	f.poster.mu.Lock()
	for _, p := range f.poster.posts {
		if p.text == "Hello Jamie, how can I help you today?" {
			greetings++
		}
	}
	f.poster.mu.Unlock()
	assert.Equal(t, 1, greetings, "exactly one greeting per thread")
}
