package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"family-vault/internal/interview"
	"family-vault/internal/session"
	"family-vault/internal/storage"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	fileURL  string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.messages, "\n---\n")
}

type followupOnce struct{}

func (followupOnce) GenerateFollowups(_ context.Context, question, _ string, _ int) ([]string, error) {
	if strings.Contains(question, "grow up") {
		return []string{"Who lived with you?"}, nil
	}
	return nil, nil
}

type stubSearcher struct{}

func (stubSearcher) AnswerAcross(_ context.Context, question string, recs []*storage.Record) (string, error) {
	return fmt.Sprintf("%s asked over %d interviews", question, len(recs)), nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(_ context.Context, audio []byte, _ string, _ bool) string {
	if len(audio) == 0 {
		return ""
	}
	return "Cleveland, Ohio"
}

type twoFollowups struct{}

func (twoFollowups) GenerateFollowups(context.Context, string, string, int) ([]string, error) {
	return []string{"Who lived with you?", "What did you eat?"}, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeSender, *storage.Store) {
	t.Helper()
	return newHandlerWith(t, followupOnce{}, 1)
}

func newHandlerWith(t *testing.T, gen interview.FollowupGenerator, followups int) (*Handler, *fakeSender, *storage.Store) {
	t.Helper()
	bank, err := interview.NewQuestionBank([]interview.Question{
		{Category: "Childhood", Text: "Where did you grow up?"},
		{Category: "Values", Text: "What matters most to you?"},
	})
	require.NoError(t, err)

	store := storage.NewStore(t.TempDir(), zap.NewNop())
	manager := session.NewManager(bank, gen, nil, nil, store, nil,
		session.Options{FollowupCount: followups}, zap.NewNop())
	sender := &fakeSender{}
	h := NewHandler(sender, manager, store, stubSearcher{}, stubTranscriber{}, zap.NewNop())
	h.rateLimiter = session.NewRateLimiter(100, time.Minute)
	return h, sender, store
}

func message(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestInterviewThroughChat(t *testing.T) {
	h, sender, store := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, "hello"))
	assert.Contains(t, sender.last(), "/start")

	h.HandleUpdate(ctx, message(1, "/start"))
	assert.Contains(t, sender.last(), "Whose story")

	h.HandleUpdate(ctx, message(1, "Margaret Smith"))
	assert.Contains(t, sender.last(), "Question 1/2")
	assert.Contains(t, sender.last(), "Where did you grow up?")

	h.HandleUpdate(ctx, message(1, "A farm in Ohio"))
	assert.Contains(t, sender.last(), "Follow-up 1/1")
	assert.Contains(t, sender.last(), "Who lived with you?")

	h.HandleUpdate(ctx, message(1, "/back"))
	assert.Contains(t, sender.last(), "Question 1/2", "back during follow-ups returns to the question")

	h.HandleUpdate(ctx, message(1, "A farm near Cleveland"))
	h.HandleUpdate(ctx, message(1, "/next"))
	assert.Contains(t, sender.last(), "Question 2/2")

	h.HandleUpdate(ctx, message(1, "/status"))
	assert.Contains(t, sender.last(), "Answers: 1")

	h.HandleUpdate(ctx, message(1, "Family"))
	assert.Contains(t, sender.last(), "All 2 questions are done")

	h.HandleUpdate(ctx, message(1, "/finish"))
	assert.Contains(t, sender.all(), "Interview with Margaret Smith saved")

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Completed)
	assert.Equal(t, 2, entries[0].TotalAnswers)

	h.HandleUpdate(ctx, message(1, "/status"))
	assert.Contains(t, sender.last(), "No interview running")
}

func TestSaveAndResumeThroughChat(t *testing.T) {
	h, sender, store := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(2, "/start Robert"))
	h.HandleUpdate(ctx, message(2, "/skip"))
	assert.Contains(t, sender.last(), "Question 2/2")

	h.HandleUpdate(ctx, message(2, "/save"))
	assert.Contains(t, sender.last(), "/resume ")

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	h.HandleUpdate(ctx, message(2, "/list"))
	assert.Contains(t, sender.last(), entries[0].ID)

	h.HandleUpdate(ctx, message(2, "/resume nobody"))
	assert.Contains(t, sender.last(), "No saved interview")

	h.HandleUpdate(ctx, message(2, "/resume "+entries[0].ID))
	assert.Contains(t, sender.last(), "Question 2/2")

	h.HandleUpdate(ctx, message(2, "/start Someone Else"))
	assert.Contains(t, sender.last(), "already running")

	h.HandleUpdate(ctx, message(2, "/stop"))
	assert.Contains(t, sender.last(), "Interview stopped")
}

func TestInvalidTransitionsAreExplained(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(3, "/back"))
	assert.Contains(t, sender.last(), "No interview running")

	h.HandleUpdate(ctx, message(3, "/start Ann"))
	h.HandleUpdate(ctx, message(3, "/back"))
	assert.Contains(t, sender.last(), "not possible right now")

	h.HandleUpdate(ctx, message(3, "/finish"))
	assert.Contains(t, sender.last(), "not possible right now")

	h.HandleUpdate(ctx, message(3, "/language Klingon"))
	assert.Contains(t, sender.last(), "don't know that language")

	h.HandleUpdate(ctx, message(3, "/unknown"))
	assert.Contains(t, sender.last(), "Unknown command")
}

func TestAskCommand(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(4, "/ask"))
	assert.Contains(t, sender.last(), "What would you like to know?")

	h.HandleUpdate(ctx, message(4, "/ask Where was Clint born?"))
	assert.Contains(t, sender.last(), "Where was Clint born? asked over 0 interviews")
}

func TestVoiceAnswerIsTranscribed(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OggS"))
	}))
	defer srv.Close()
	sender.fileURL = srv.URL

	h.HandleUpdate(ctx, message(5, "/start Margaret"))
	voice := message(5, "")
	voice.Message.Voice = &tgbotapi.Voice{FileID: "voice-1"}
	h.HandleUpdate(ctx, voice)

	assert.Contains(t, sender.all(), "I heard: _Cleveland, Ohio_")
	assert.Contains(t, sender.last(), "Who lived with you?")
}

func TestRateLimitedUser(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	h.rateLimiter = session.NewRateLimiter(10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		h.HandleUpdate(ctx, message(6, "/help"))
	}
	assert.Contains(t, sender.last(), "/finish")

	h.HandleUpdate(ctx, message(6, "/help"))
	assert.Contains(t, sender.last(), "Too many messages")

	h.HandleUpdate(ctx, message(7, "/help"))
	assert.Contains(t, sender.last(), "/finish", "other users are not affected")
}

func TestValidateUserInput(t *testing.T) {
	assert.NoError(t, validateUserInput("I grew up in Ohio."))
	assert.Error(t, validateUserInput(strings.Repeat("a", maxMessageLen+1)))
	assert.Error(t, validateUserInput("!!!!!!!!!!!!!!!!"))
}

func TestCleanupInactiveUsers(t *testing.T) {
	h, _, _ := newTestHandler(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	h.HandleUpdate(context.Background(), message(8, "/help"))
	require.Len(t, h.users, 1)

	now = now.Add(userSessionTTL + time.Minute)
	h.cleanupInactiveUsers()
	assert.Empty(t, h.users)
}

func TestPassSkipsOneFollowup(t *testing.T) {
	h, sender, _ := newHandlerWith(t, twoFollowups{}, 2)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, "/start Margaret"))
	h.HandleUpdate(ctx, message(1, "A farm in Ohio"))
	assert.Contains(t, sender.last(), "Follow-up 1/2")

	h.HandleUpdate(ctx, message(1, "/pass"))
	assert.Contains(t, sender.last(), "Follow-up 2/2")
	assert.Contains(t, sender.last(), "What did you eat?")

	h.HandleUpdate(ctx, message(1, "Corn bread"))
	assert.Contains(t, sender.last(), "Question 2/2")

	view, err := h.sessions.Get(ctx, h.users[1].SessionID)
	require.NoError(t, err)
	require.Len(t, view.Answers, 1)
	assert.Equal(t, []interview.FollowupAnswer{{Question: "What did you eat?", Answer: "Corn bread"}}, view.Answers[0].Followups)

	h.HandleUpdate(ctx, message(1, "/pass"))
	assert.Contains(t, sender.last(), "not possible", "pass only applies to follow-ups")
}

func TestBackStepsThroughFollowupsAndReopens(t *testing.T) {
	h, sender, _ := newHandlerWith(t, twoFollowups{}, 2)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(1, "/start Margaret"))
	h.HandleUpdate(ctx, message(1, "A farm in Ohio"))
	h.HandleUpdate(ctx, message(1, "My grandparents"))
	assert.Contains(t, sender.last(), "Follow-up 2/2")

	h.HandleUpdate(ctx, message(1, "/back"))
	assert.Contains(t, sender.last(), "Follow-up 1/2", "back inside the cycle returns to the previous follow-up")

	h.HandleUpdate(ctx, message(1, "My parents and grandparents"))
	h.HandleUpdate(ctx, message(1, "/next"))
	h.HandleUpdate(ctx, message(1, "Family"))
	h.HandleUpdate(ctx, message(1, "/next"))
	assert.Contains(t, sender.last(), "All 2 questions are done")

	h.HandleUpdate(ctx, message(1, "/back"))
	assert.Contains(t, sender.last(), "Question 2/2", "back on a finished interview reopens the last question")

	view, err := h.sessions.Get(ctx, h.users[1].SessionID)
	require.NoError(t, err)
	require.Len(t, view.Answers, 1)
	assert.Equal(t, []interview.FollowupAnswer{{Question: "Who lived with you?", Answer: "My parents and grandparents"}}, view.Answers[0].Followups)
}
