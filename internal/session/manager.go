// Package session keeps interviews in progress for the HTTP and Telegram
// front ends. Each session has a single writer at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"family-vault/internal/interview"
	"family-vault/internal/storage"
	"family-vault/internal/translation"
)

const (
	DefaultIdleTTL         = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNoRecord            = errors.New("no resumable record at location")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrRecordInUse         = errors.New("record is open in an active session")
)

type Extractor interface {
	Extract(ctx context.Context, subject string, answers []interview.Answer) (map[string]any, error)
}

type Translator interface {
	Translate(ctx context.Context, text, language string) string
}

type Store interface {
	Save(state *interview.SessionState, extracted map[string]any) (string, error)
	Load(location string, bank *interview.QuestionBank) *interview.SessionState
	ReadRecord(location string) (*storage.Record, error)
}

// Recorder receives interview progress counters.
type Recorder interface {
	IncrementInterviewsStarted()
	IncrementInterviewsCompleted()
	IncrementInterviewsSaved()
	IncrementQuestionsAnswered()
	IncrementFollowupsAnswered()
	SetActiveSessions(n int)
}

type Options struct {
	FollowupCount int
	ExtractOnSave bool
	IdleTTL       time.Duration
}

type Manager struct {
	bank       *interview.QuestionBank
	generator  interview.FollowupGenerator
	extractor  Extractor
	translator Translator
	store      Store
	metrics    Recorder
	opts       Options
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	// recordMu serializes opening saved records against each other and
	// against RecordOp.
	recordMu sync.Mutex
}

type entry struct {
	mu           sync.Mutex
	id           string
	engine       *interview.Engine
	location     string
	language     string
	extracted    map[string]any
	translations map[string]string
	lastActivity time.Time
	closed       bool
}

func NewManager(
	bank *interview.QuestionBank,
	generator interview.FollowupGenerator,
	extractor Extractor,
	translator Translator,
	store Store,
	metrics Recorder,
	opts Options,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		bank:       bank,
		generator:  generator,
		extractor:  extractor,
		translator: translator,
		store:      store,
		metrics:    metrics,
		opts:       opts,
		logger:     logger.Named("session"),
		now:        time.Now,
		sessions:   make(map[string]*entry),
	}
}

// Start opens a new interview for subject.
func (m *Manager) Start(ctx context.Context, subject string) (View, error) {
	state, err := interview.NewSession(subject, m.bank, m.now())
	if err != nil {
		return View{}, err
	}

	e, _, err := m.register(state, nil)
	if err != nil {
		return View{}, err
	}
	m.logger.Info("interview started", zap.String("session", e.id), zap.String("subject", state.Subject()))
	return m.Get(ctx, e.id)
}

// Resume reopens the record at location. A location already held by an
// active session returns that session.
func (m *Manager) Resume(ctx context.Context, location string) (View, error) {
	id, err := m.open(location)
	if err != nil {
		return View{}, err
	}
	return m.Get(ctx, id)
}

func (m *Manager) open(location string) (string, error) {
	m.recordMu.Lock()
	defer m.recordMu.Unlock()

	if e := m.findByLocation(location); e != nil {
		return e.id, nil
	}

	state := m.store.Load(location, m.bank)
	if state == nil {
		return "", fmt.Errorf("%w: %s", ErrNoRecord, location)
	}

	var extracted map[string]any
	if rec, err := m.store.ReadRecord(location); err == nil {
		extracted = rec.ExtractedData
	}

	e, existing, err := m.register(state, extracted)
	if err != nil {
		return "", err
	}
	if !existing {
		m.logger.Info("interview resumed",
			zap.String("session", e.id),
			zap.String("location", location),
			zap.Int("question", state.CurrentIndex()))
	}
	return e.id, nil
}

// RecordOp runs fn for the saved record at location while no session can
// open it. A location held by an active session fails with ErrRecordInUse.
func (m *Manager) RecordOp(location string, fn func() error) error {
	m.recordMu.Lock()
	defer m.recordMu.Unlock()

	if m.findByLocation(location) != nil {
		return fmt.Errorf("%w: %s", ErrRecordInUse, location)
	}
	return fn()
}

func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(*entry) error { return nil })
}

// Answer submits text to whatever the session is waiting for.
func (m *Manager) Answer(ctx context.Context, id, text string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		if e.engine.Phase() == interview.AwaitingFollowupAnswer {
			return m.submitFollowup(e, text)
		}
		return m.submitMain(ctx, e, text)
	})
}

func (m *Manager) SubmitMain(ctx context.Context, id, text string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return m.submitMain(ctx, e, text)
	})
}

func (m *Manager) SubmitFollowup(ctx context.Context, id, text string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return m.submitFollowup(e, text)
	})
}

func (m *Manager) SkipFollowups(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.SkipFollowups()
	})
}

func (m *Manager) CancelFollowups(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.CancelFollowups()
	})
}

func (m *Manager) Back(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.GoToPreviousQuestion()
	})
}

func (m *Manager) PreviousFollowup(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.PreviousFollowup()
	})
}

func (m *Manager) ReopenLastQuestion(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.ReopenLastQuestion()
	})
}

func (m *Manager) Skip(ctx context.Context, id string) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		return e.engine.SkipCurrentQuestion()
	})
}

func (m *Manager) SetRecording(ctx context.Context, id string, recording bool) (View, error) {
	return m.with(ctx, id, func(e *entry) error {
		e.engine.SetRecording(recording)
		return nil
	})
}

// SetLanguage selects the language prompts are shown in. Names and ISO
// codes are accepted.
func (m *Manager) SetLanguage(ctx context.Context, id, language string) (View, error) {
	name, ok := translation.Normalize(language)
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return m.with(ctx, id, func(e *entry) error {
		e.language = name
		return nil
	})
}

// Save persists the finalized answers. With exit set the session is
// released after a successful write; on failure it stays active for retry.
// A complete session is saved the way Finish saves it.
func (m *Manager) Save(ctx context.Context, id string, exit bool) (SaveResult, error) {
	var result SaveResult
	view, err := m.with(ctx, id, func(e *entry) error {
		if e.engine.State().Completed() {
			location, err := m.complete(ctx, e)
			if err != nil {
				return err
			}
			result.Location = location
			if exit {
				m.release(e)
			}
			return nil
		}

		if m.opts.ExtractOnSave {
			m.refreshExtraction(ctx, e)
		}
		location, err := m.store.Save(e.engine.State(), e.extracted)
		if err != nil {
			return err
		}
		m.bindLocation(e, location)
		result.Location = location
		if exit {
			m.release(e)
		}
		if m.metrics != nil {
			m.metrics.IncrementInterviewsSaved()
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}
	result.View = view
	result.RecordID = storage.IDOf(result.Location)
	return result, nil
}

// Finish extracts, saves a completed interview and releases the session.
func (m *Manager) Finish(ctx context.Context, id string) (SaveResult, error) {
	var result SaveResult
	view, err := m.with(ctx, id, func(e *entry) error {
		state := e.engine.State()
		if !state.Completed() {
			return &interview.TransitionError{Op: "finish interview", Phase: state.Phase(), Reason: "questions remain"}
		}
		location, err := m.complete(ctx, e)
		if err != nil {
			return err
		}
		result.Location = location
		m.release(e)
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}
	result.View = view
	result.RecordID = storage.IDOf(result.Location)
	return result, nil
}

// Discard drops a session without saving.
func (m *Manager) Discard(id string) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	m.release(e)
	return nil
}

// Active returns the number of sessions held in memory.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup drops sessions idle for longer than the configured TTL. Sessions
// busy with an operation are left alone.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.opts.IdleTTL)
	removed := 0
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastActivity.Before(cutoff) {
			e.closed = true
			delete(m.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	m.reportActive()

	if removed > 0 {
		m.logger.Info("inactive sessions removed", zap.Int("removed", removed))
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

func (m *Manager) submitMain(ctx context.Context, e *entry, text string) error {
	if err := e.engine.SubmitMainAnswer(ctx, text); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.IncrementQuestionsAnswered()
	}
	return nil
}

func (m *Manager) submitFollowup(e *entry, text string) error {
	if err := e.engine.SubmitFollowupAnswer(text); err != nil {
		return err
	}
	if m.metrics != nil && !isBlank(text) {
		m.metrics.IncrementFollowupsAnswered()
	}
	return nil
}

// complete extracts and saves a complete session flagged as completed.
// Callers hold e.mu.
func (m *Manager) complete(ctx context.Context, e *entry) (string, error) {
	m.refreshExtraction(ctx, e)
	location, err := m.store.Save(e.engine.State(), e.extracted)
	if err != nil {
		return "", err
	}
	m.bindLocation(e, location)
	if m.metrics != nil {
		m.metrics.IncrementInterviewsCompleted()
	}
	m.logger.Info("interview completed", zap.String("session", e.id), zap.String("location", location))
	return location, nil
}

// refreshExtraction replaces the extracted data, keeping the previous data
// when extraction fails.
func (m *Manager) refreshExtraction(ctx context.Context, e *entry) {
	if m.extractor == nil {
		return
	}
	state := e.engine.State()
	data, err := m.extractor.Extract(ctx, state.Subject(), state.Answers())
	if err != nil {
		m.logger.Warn("extraction failed, saving without new structured data",
			zap.String("session", e.id),
			zap.Error(err))
		return
	}
	if data != nil {
		e.extracted = data
	}
}

// register adds a session for state. When another session already holds
// state's location, that session is returned with existing set.
func (m *Manager) register(state *interview.SessionState, extracted map[string]any) (e *entry, existing bool, err error) {
	engine, err := interview.NewEngine(m.bank, state, m.generator,
		interview.WithFollowupCount(m.opts.FollowupCount),
		interview.WithLogger(m.logger))
	if err != nil {
		return nil, false, err
	}

	e = &entry{
		id:           uuid.NewString(),
		engine:       engine,
		location:     state.Location(),
		language:     translation.English,
		extracted:    extracted,
		translations: make(map[string]string),
		lastActivity: m.now(),
	}

	m.mu.Lock()
	if location := state.Location(); location != "" {
		for _, other := range m.sessions {
			if other.location == location {
				m.mu.Unlock()
				return other, true, nil
			}
		}
	}
	m.sessions[e.id] = e
	m.reportActive()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncrementInterviewsStarted()
	}
	return e, false, nil
}

func (m *Manager) bindLocation(e *entry, location string) {
	m.mu.Lock()
	e.location = location
	m.mu.Unlock()
}

// release removes e from the manager. Callers hold e.mu.
func (m *Manager) release(e *entry) {
	e.closed = true
	m.mu.Lock()
	delete(m.sessions, e.id)
	m.reportActive()
	m.mu.Unlock()
}

// reportActive publishes the session count. Callers hold m.mu.
func (m *Manager) reportActive() {
	if m.metrics != nil {
		m.metrics.SetActiveSessions(len(m.sessions))
	}
}

func (m *Manager) findByLocation(location string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.sessions {
		if e.location == location {
			return e
		}
	}
	return nil
}

func (m *Manager) with(ctx context.Context, id string, fn func(e *entry) error) (View, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.lastActivity = m.now()
	if err := fn(e); err != nil {
		return View{}, err
	}
	return m.view(ctx, e), nil
}
