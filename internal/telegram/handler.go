package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/extractor"
	"family-vault/internal/interview"
	"family-vault/internal/session"
	"family-vault/internal/storage"
	"family-vault/internal/translation"
)

const (
	maxMessageLen  = 4000
	maxChunkLen    = 3500
	maxVoiceBytes  = 20 << 20
	userSessionTTL = 24 * time.Hour
)

// Sessions runs the interviews driven from chats.
type Sessions interface {
	Start(ctx context.Context, subject string) (session.View, error)
	Resume(ctx context.Context, location string) (session.View, error)
	Get(ctx context.Context, id string) (session.View, error)
	Answer(ctx context.Context, id, text string) (session.View, error)
	SubmitFollowup(ctx context.Context, id, text string) (session.View, error)
	SkipFollowups(ctx context.Context, id string) (session.View, error)
	CancelFollowups(ctx context.Context, id string) (session.View, error)
	PreviousFollowup(ctx context.Context, id string) (session.View, error)
	Back(ctx context.Context, id string) (session.View, error)
	ReopenLastQuestion(ctx context.Context, id string) (session.View, error)
	Skip(ctx context.Context, id string) (session.View, error)
	SetLanguage(ctx context.Context, id, language string) (session.View, error)
	Save(ctx context.Context, id string, exit bool) (session.SaveResult, error)
	Finish(ctx context.Context, id string) (session.SaveResult, error)
	Discard(id string) error
}

type Records interface {
	List() ([]storage.Entry, error)
	LocationOf(id string) (string, error)
	ReadRecord(location string) (*storage.Record, error)
}

type Searcher interface {
	AnswerAcross(ctx context.Context, question string, recs []*storage.Record) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string, translate bool) string
}

type Handler struct {
	sender      Sender
	sessions    Sessions
	records     Records
	searcher    Searcher
	transcriber Transcriber
	httpClient  *http.Client
	logger      *zap.Logger
	now         func() time.Time

	users       map[int64]*UserSession
	usersMutex  sync.Mutex
	rateLimiter *session.RateLimiter
}

func NewHandler(sender Sender, sessions Sessions, records Records, searcher Searcher, transcriber Transcriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sender:      sender,
		sessions:    sessions,
		records:     records,
		searcher:    searcher,
		transcriber: transcriber,
		httpClient:  &http.Client{Timeout: time.Minute},
		logger:      logger.Named("telegram"),
		now:         time.Now,
		users:       make(map[int64]*UserSession),
		rateLimiter: session.NewRateLimiter(10, time.Minute),
	}
}

// StartCleanup forgets users idle for a day, checking every interval.
func (h *Handler) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.cleanupInactiveUsers()
				h.rateLimiter.Prune()
			}
		}
	}()
}

func (h *Handler) cleanupInactiveUsers() {
	h.usersMutex.Lock()
	defer h.usersMutex.Unlock()

	cutoff := h.now().Add(-userSessionTTL)
	for uid, us := range h.users {
		if !us.mu.TryLock() {
			continue
		}
		if us.LastActivity.Before(cutoff) {
			delete(h.users, uid)
		}
		us.mu.Unlock()
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !h.rateLimiter.IsAllowed(strconv.FormatInt(msg.From.ID, 10)) {
		h.send(chatID, "⏳ Too many messages. Please wait a minute.")
		return
	}

	us := h.userSession(msg.From.ID)
	us.mu.Lock()
	defer us.mu.Unlock()
	us.LastActivity = h.now()

	if msg.IsCommand() {
		h.handleCommand(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()), us)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if msg.Voice != nil {
		heard, ok := h.transcribeVoice(ctx, chatID, msg.Voice.FileID)
		if !ok {
			return
		}
		h.send(chatID, "🎙 I heard: _"+heard+"_")
		text = heard
	}
	if text == "" {
		h.send(chatID, "Please answer with a text or voice message.")
		return
	}
	h.handleUserInput(ctx, chatID, text, us)
}

func (h *Handler) userSession(userID int64) *UserSession {
	h.usersMutex.Lock()
	defer h.usersMutex.Unlock()

	us, ok := h.users[userID]
	if !ok {
		us = &UserSession{UserID: userID, State: StateIdle}
		h.users[userID] = us
	}
	return us
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, command, args string, us *UserSession) {
	switch command {
	case "start":
		h.handleStartCommand(ctx, chatID, args, us)
	case "resume":
		h.handleResumeCommand(ctx, chatID, args, us)
	case "list":
		h.handleListCommand(chatID)
	case "status":
		h.handleStatusCommand(ctx, chatID, us)
	case "skip":
		h.step(ctx, chatID, us, h.sessions.Skip)
	case "next":
		h.step(ctx, chatID, us, h.sessions.SkipFollowups)
	case "pass":
		h.step(ctx, chatID, us, h.passFollowup)
	case "back":
		h.handleBackCommand(ctx, chatID, us)
	case "save":
		h.handleSaveCommand(ctx, chatID, us)
	case "finish":
		h.handleFinishCommand(ctx, chatID, us)
	case "stop":
		h.handleStopCommand(chatID, us)
	case "ask":
		h.handleAskCommand(ctx, chatID, args)
	case "language":
		h.handleLanguageCommand(ctx, chatID, args, us)
	case "help":
		h.send(chatID, helpText)
	default:
		h.send(chatID, "Unknown command. Use /help to see what I can do.")
	}
}

const helpText = `📖 *Family story interviews*

*Interview:*
/start <name> - Start recording someone's story
/resume <id> - Continue a saved interview
/status - Show progress
/skip - Skip the current question
/pass - Skip just this follow-up
/next - Move on without more follow-ups
/back - Go back one step (follow-up, question, or reopen a finished interview)
/save - Save and continue later
/finish - Save the finished interview
/stop - Drop the interview without saving

*Library:*
/list - Saved interviews
/ask <question> - Ask about the family stories
/language <name> - Show questions in another language

Answer each question with a text or voice message.`

func (h *Handler) handleStartCommand(ctx context.Context, chatID int64, name string, us *UserSession) {
	if us.State == StateInterview {
		h.send(chatID, "An interview is already running. Use /save to keep it for later or /stop to drop it.")
		return
	}
	if name == "" {
		us.State = StateAwaitingName
		h.send(chatID, "👋 Whose story are we recording today? Send me their name.")
		return
	}
	h.startInterview(ctx, chatID, name, us)
}

func (h *Handler) startInterview(ctx context.Context, chatID int64, name string, us *UserSession) {
	view, err := h.sessions.Start(ctx, name)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	us.State = StateInterview
	us.SessionID = view.ID

	h.send(chatID, fmt.Sprintf("🎯 *Interview with %s*\n\n%d questions. Answer in as much detail as you like, by text or voice.",
		view.Subject, view.Prompt.QuestionCount))
	h.send(chatID, FormatPrompt(view))
}

func (h *Handler) handleResumeCommand(ctx context.Context, chatID int64, id string, us *UserSession) {
	if us.State == StateInterview {
		h.send(chatID, "An interview is already running. Use /save or /stop first.")
		return
	}
	if id == "" {
		h.send(chatID, "Which interview? Use /resume <id>. /list shows the ids.")
		return
	}

	location, err := h.records.LocationOf(id)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	view, err := h.sessions.Resume(ctx, location)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	us.State = StateInterview
	us.SessionID = view.ID

	h.send(chatID, fmt.Sprintf("📂 Continuing the interview with %s (%d answers so far).", view.Subject, view.AnswerCount))
	h.send(chatID, FormatPrompt(view))
}

func (h *Handler) handleListCommand(chatID int64) {
	entries, err := h.records.List()
	if err != nil {
		h.logger.Error("list records", zap.Error(err))
		h.send(chatID, "❌ Could not read saved interviews.")
		return
	}
	h.sendLong(chatID, FormatEntries(entries))
}

func (h *Handler) handleStatusCommand(ctx context.Context, chatID int64, us *UserSession) {
	if us.State != StateInterview {
		h.send(chatID, "No interview running. Use /start <name> to begin or /resume <id> to continue one.")
		return
	}
	view, err := h.sessions.Get(ctx, us.SessionID)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	h.send(chatID, FormatStatus(view))
}

// handleBackCommand steps back one follow-up, leaves the first follow-up for
// a new main answer, reopens the last question of a finished interview, or
// steps back to the previous question.
func (h *Handler) handleBackCommand(ctx context.Context, chatID int64, us *UserSession) {
	if !h.requireInterview(chatID, us) {
		return
	}
	view, err := h.sessions.Get(ctx, us.SessionID)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	switch {
	case view.Prompt.Phase == interview.AwaitingFollowupAnswer && view.Prompt.FollowupIndex > 0:
		h.step(ctx, chatID, us, h.sessions.PreviousFollowup)
	case view.Prompt.Phase == interview.AwaitingFollowupAnswer:
		h.step(ctx, chatID, us, h.sessions.CancelFollowups)
	case view.Prompt.Phase == interview.Complete:
		h.step(ctx, chatID, us, h.sessions.ReopenLastQuestion)
	default:
		h.step(ctx, chatID, us, h.sessions.Back)
	}
}

// passFollowup leaves the pending follow-up unanswered.
func (h *Handler) passFollowup(ctx context.Context, id string) (session.View, error) {
	return h.sessions.SubmitFollowup(ctx, id, "")
}

func (h *Handler) handleSaveCommand(ctx context.Context, chatID int64, us *UserSession) {
	if !h.requireInterview(chatID, us) {
		return
	}
	h.typing(chatID)
	result, err := h.sessions.Save(ctx, us.SessionID, true)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	h.reset(us)
	h.send(chatID, fmt.Sprintf("💾 Saved %d answers for %s.\n\nContinue any time with `/resume %s`",
		result.View.AnswerCount, result.View.Subject, result.RecordID))
}

func (h *Handler) handleFinishCommand(ctx context.Context, chatID int64, us *UserSession) {
	if !h.requireInterview(chatID, us) {
		return
	}
	h.typing(chatID)
	result, err := h.sessions.Finish(ctx, us.SessionID)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	h.reset(us)

	h.send(chatID, fmt.Sprintf("✅ *Interview with %s saved!*\n\n• %d answers\n• %d follow-ups\n• ID: `%s`",
		result.View.Subject, result.View.AnswerCount, result.View.FollowupCount, result.RecordID))

	rec, err := h.records.ReadRecord(result.Location)
	if err != nil {
		h.logger.Warn("read finished record", zap.String("location", result.Location), zap.Error(err))
		return
	}
	h.sendLong(chatID, extractor.FormatForDisplay(rec.ExtractedData))
}

func (h *Handler) handleStopCommand(chatID int64, us *UserSession) {
	if us.State == StateIdle {
		h.send(chatID, "No interview running.")
		return
	}
	if us.SessionID != "" {
		if err := h.sessions.Discard(us.SessionID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			h.logger.Warn("discard session", zap.String("session", us.SessionID), zap.Error(err))
		}
	}
	h.reset(us)
	h.send(chatID, "🛑 Interview stopped. Nothing was saved since the last /save.")
}

// handleAskCommand answers a question from every saved interview.
func (h *Handler) handleAskCommand(ctx context.Context, chatID int64, question string) {
	if question == "" {
		h.send(chatID, "What would you like to know? For example: /ask Where did grandma grow up?")
		return
	}

	entries, err := h.records.List()
	if err != nil {
		h.logger.Error("list records", zap.Error(err))
		h.send(chatID, "❌ Could not read saved interviews.")
		return
	}
	recs := make([]*storage.Record, 0, len(entries))
	for _, e := range entries {
		if rec, err := h.records.ReadRecord(e.Location); err == nil {
			recs = append(recs, rec)
		}
	}

	h.typing(chatID)
	answer, err := h.searcher.AnswerAcross(ctx, question, recs)
	if err != nil {
		h.replyError(chatID, err, nil)
		return
	}
	h.sendLong(chatID, "🔎 "+answer)
}

func (h *Handler) handleLanguageCommand(ctx context.Context, chatID int64, language string, us *UserSession) {
	if language == "" {
		h.sendLong(chatID, FormatLanguages(translation.Languages()))
		return
	}
	if !h.requireInterview(chatID, us) {
		return
	}
	h.typing(chatID)
	view, err := h.sessions.SetLanguage(ctx, us.SessionID, language)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	h.send(chatID, "🌍 Questions will be shown in "+view.Language+".")
	h.send(chatID, FormatPrompt(view))
}

func (h *Handler) handleUserInput(ctx context.Context, chatID int64, text string, us *UserSession) {
	if err := validateUserInput(text); err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	switch us.State {
	case StateAwaitingName:
		h.startInterview(ctx, chatID, text, us)
	case StateInterview:
		h.typing(chatID)
		view, err := h.sessions.Answer(ctx, us.SessionID, text)
		if err != nil {
			h.replyError(chatID, err, us)
			return
		}
		h.send(chatID, FormatPrompt(view))
	default:
		h.send(chatID, "Use /start <name> to begin an interview or /help for help.")
	}
}

func (h *Handler) step(ctx context.Context, chatID int64, us *UserSession, op func(context.Context, string) (session.View, error)) {
	if !h.requireInterview(chatID, us) {
		return
	}
	view, err := op(ctx, us.SessionID)
	if err != nil {
		h.replyError(chatID, err, us)
		return
	}
	h.send(chatID, FormatPrompt(view))
}

func (h *Handler) requireInterview(chatID int64, us *UserSession) bool {
	if us.State != StateInterview {
		h.send(chatID, "No interview running. Use /start <name> or /resume <id>.")
		return false
	}
	return true
}

func (h *Handler) reset(us *UserSession) {
	us.State = StateIdle
	us.SessionID = ""
}

// replyError tells the user what went wrong. A session that no longer
// exists resets the user.
func (h *Handler) replyError(chatID int64, err error, us *UserSession) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		if us != nil {
			h.reset(us)
		}
		h.send(chatID, "⌛ This interview is no longer active. Use /resume <id> to continue a saved one.")
	case errors.Is(err, interview.ErrEmptyInput):
		h.send(chatID, "✏️ Please write something first.")
	case errors.Is(err, interview.ErrInvalidTransition):
		h.send(chatID, "🚫 That's not possible right now: "+err.Error())
	case errors.Is(err, session.ErrUnsupportedLanguage):
		h.send(chatID, "🌍 I don't know that language. Send /language to see the list.")
	case errors.Is(err, session.ErrNoRecord), errors.Is(err, storage.ErrRecordNotFound), errors.Is(err, storage.ErrInvalidID):
		h.send(chatID, "🔍 No saved interview with that id. Use /list to see them.")
	case errors.Is(err, storage.ErrStorage):
		h.logger.Error("storage failure", zap.Error(err))
		h.send(chatID, "❌ Could not save. Your answers are kept, please try again.")
	case errors.Is(err, api.ErrExternalService):
		h.logger.Warn("external service failure", zap.Error(err))
		h.send(chatID, "⚠️ The assistant is unavailable right now, please try again shortly.")
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.send(chatID, "❌ Something went wrong.")
	}
}

func (h *Handler) transcribeVoice(ctx context.Context, chatID int64, fileID string) (string, bool) {
	h.typing(chatID)
	audio, err := h.download(ctx, fileID)
	if err != nil {
		h.logger.Warn("download voice message", zap.Error(err))
		h.send(chatID, "❌ Could not download the voice message.")
		return "", false
	}

	text := h.transcriber.Transcribe(ctx, audio, "voice.ogg", false)
	if text == "" {
		h.send(chatID, "🎙 I couldn't make out any words. Please try again or type your answer.")
		return "", false
	}
	return text, true
}

func (h *Handler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.sender.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
}

func (h *Handler) typing(chatID int64) {
	if _, err := h.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		h.logger.Debug("send chat action", zap.Error(err))
	}
}

// send delivers text as Markdown, falling back to plain text when Telegram
// rejects the markup.
func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.sender.Send(msg); err == nil {
		return
	}

	msg.ParseMode = ""
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.Warn("send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (h *Handler) sendLong(chatID int64, text string) {
	for _, chunk := range SplitMessage(text, maxChunkLen) {
		h.send(chatID, chunk)
	}
}

func validateUserInput(text string) error {
	if len(text) > maxMessageLen {
		return fmt.Errorf("message is too long (at most %d characters)", maxMessageLen)
	}
	if len(text) > 10 && strings.Count(text, text[:1]) > len(text)*8/10 {
		return fmt.Errorf("message repeats the same character too often")
	}
	return nil
}
