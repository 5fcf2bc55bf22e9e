package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bz888/chatrelay/internal/api/server/client"
)

type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) Chat(ctx context.Context, req *client.ServerChatRequest) (client.RecordStream, error) {
	args := m.Called(ctx, req)
	stream, _ := args.Get(0).(client.RecordStream)
	return stream, args.Error(1)
}

func (m *MockUpstream) ListModels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type step struct {
	rec client.Record
	err error
}

// fakeStream replays steps and records how often it was read and closed.
type fakeStream struct {
	steps  []step
	reads  int
	closed int
}

func (s *fakeStream) Recv() (client.Record, error) {
	if s.reads >= len(s.steps) {
		s.reads++
		return client.Record{}, io.EOF
	}
	st := s.steps[s.reads]
	s.reads++
	return st.rec, st.err
}

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

type recordingWriter struct {
	buf     bytes.Buffer
	writes  []string
	flushes int
	failAt  int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.failAt > 0 && len(w.writes)+1 >= w.failAt {
		return 0, errors.New("broken pipe")
	}
	w.writes = append(w.writes, string(p))
	return w.buf.Write(p)
}

func (w *recordingWriter) String() string {
	return w.buf.String()
}

func (w *recordingWriter) Flush() {
	w.flushes++
}

func tok(s string) step {
	return step{rec: client.Record{Content: s}}
}

func done(s string) step {
	return step{rec: client.Record{Content: s, Done: true}}
}

func TestBuildUpstreamRequestKeepsOrder(t *testing.T) {
	req := client.ChatRequest{
		Model: "m1",
		Messages: []client.ChatMessage{
			client.NewChatMessage(client.RoleSystem, "be brief"),
			client.NewChatMessage(client.RoleUser, "hi"),
			client.NewChatMessage(client.RoleAssistant, "hello"),
			client.NewChatMessage(client.RoleUser, ""),
		},
	}

	got := BuildUpstreamRequest(req)
	assert.Equal(t, &client.ServerChatRequest{
		Model: "m1",
		Messages: []client.ServerChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: ""},
		},
		Stream: true,
	}, got)
}

func TestPumpForwardsTokensInOrder(t *testing.T) {
	stream := &fakeStream{steps: []step{tok("He"), tok(""), tok("llo"), tok(" "), tok("world"), done("")}}
	w := &recordingWriter{}
	r := New(new(MockUpstream), SkipMalformed)
	session := NewSession("m1")

	err := r.Pump(context.Background(), session, stream, w)
	require.NoError(t, err)

	assert.Equal(t, "Hello world", w.String())
	assert.Equal(t, []string{"He", "llo", " ", "world"}, w.writes)
	assert.Equal(t, 4, w.flushes)
	assert.Equal(t, 4, session.Tokens)
	assert.Equal(t, int64(11), session.Bytes)
	assert.Equal(t, Closed, session.State)
	assert.Equal(t, 1, stream.closed)
}

func TestPumpStopsReadingAfterDone(t *testing.T) {
	stream := &fakeStream{steps: []step{tok("a"), done("b"), tok("never")}}
	w := &recordingWriter{}

	err := New(new(MockUpstream), SkipMalformed).Pump(context.Background(), NewSession("m1"), stream, w)
	require.NoError(t, err)

	assert.Equal(t, "ab", w.String())
	assert.Equal(t, 2, stream.reads)
	assert.Equal(t, 1, stream.closed)
}

func TestPumpSkipsMalformedLines(t *testing.T) {
	bad := step{err: &client.DecodeError{Line: []byte("{oops"), Err: errors.New("invalid character")}}
	stream := &fakeStream{steps: []step{tok("He"), bad, tok("llo"), bad, done("")}}
	w := &recordingWriter{}
	session := NewSession("m1")

	err := New(new(MockUpstream), SkipMalformed).Pump(context.Background(), session, stream, w)
	require.NoError(t, err)

	assert.Equal(t, "Hello", w.String())
	assert.Equal(t, 2, session.Skipped)
}

func TestPumpAbortsOnMalformedLineWhenConfigured(t *testing.T) {
	bad := step{err: &client.DecodeError{Line: []byte("{oops"), Err: errors.New("invalid character")}}
	stream := &fakeStream{steps: []step{tok("He"), bad, tok("llo")}}
	w := &recordingWriter{}

	err := New(new(MockUpstream), AbortOnMalformed).Pump(context.Background(), NewSession("m1"), stream, w)

	var decodeErr *client.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "He", w.String())
	assert.Equal(t, 1, stream.closed)
}

func TestPumpStopsOnWriteFailure(t *testing.T) {
	stream := &fakeStream{steps: []step{tok("a"), tok("b"), tok("c"), done("")}}
	w := &recordingWriter{failAt: 2}

	err := New(new(MockUpstream), SkipMalformed).Pump(context.Background(), NewSession("m1"), stream, w)

	assert.ErrorIs(t, err, ErrClientDisconnected)
	assert.Equal(t, "a", w.String())
	assert.Equal(t, 2, stream.reads, "no upstream reads after the failed write")
	assert.Equal(t, 1, stream.closed)
}

func TestPumpReportsCancelledContextAsDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := &fakeStream{steps: []step{tok("a"), {err: context.Canceled}}}
	w := &recordingWriter{}

	err := New(new(MockUpstream), SkipMalformed).Pump(ctx, NewSession("m1"), stream, w)

	assert.ErrorIs(t, err, ErrClientDisconnected)
	assert.Equal(t, "a", w.String())
}

func TestPumpReturnsMidStreamUpstreamError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	stream := &fakeStream{steps: []step{tok("a"), {err: boom}, tok("b")}}
	w := &recordingWriter{}

	err := New(new(MockUpstream), SkipMalformed).Pump(context.Background(), NewSession("m1"), stream, w)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrClientDisconnected)
	assert.Equal(t, "a", w.String())
	assert.Equal(t, 1, stream.closed)
}

func TestOpenTransitions(t *testing.T) {
	req := client.ChatRequest{Model: "m1", Messages: []client.ChatMessage{client.NewChatMessage(client.RoleUser, "hi")}}

	upstream := new(MockUpstream)
	stream := &fakeStream{}
	upstream.On("Chat", mock.Anything, BuildUpstreamRequest(req)).Return(stream, nil).Once()

	session, got, err := New(upstream, SkipMalformed).Open(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, stream, got)
	assert.Equal(t, AwaitingUpstream, session.State)
	assert.Equal(t, "m1", session.Model)
	assert.NotEmpty(t, session.ID)
	upstream.AssertExpectations(t)
}

func TestOpenFailureClosesSession(t *testing.T) {
	req := client.ChatRequest{Model: "m1", Messages: []client.ChatMessage{client.NewChatMessage(client.RoleUser, "hi")}}

	upstream := new(MockUpstream)
	upstream.On("Chat", mock.Anything, mock.Anything).Return(nil, client.ErrUpstreamUnavailable).Once()

	session, stream, err := New(upstream, SkipMalformed).Open(context.Background(), req)
	assert.ErrorIs(t, err, client.ErrUpstreamUnavailable)
	assert.Nil(t, stream)
	assert.Equal(t, Closed, session.State)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, SkipMalformed, p)

	p, err = ParsePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, AbortOnMalformed, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_upstream", AwaitingUpstream.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "closed", Closed.String())
}
