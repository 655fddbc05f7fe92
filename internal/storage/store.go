// Package storage keeps interview records as JSON files in one directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"family-vault/internal/interview"
)

const (
	DefaultDir = "data/parent_profiles"

	recordExt     = ".json"
	tempPattern   = ".record-*.tmp"
	timestampForm = "20060102_150405"
)

var (
	// ErrStorage wraps every persistence I/O failure.
	ErrStorage = errors.New("storage failure")
	// ErrRecordNotFound is returned when no record exists at a location.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidID is returned for identifiers that do not name a record in the store.
	ErrInvalidID = errors.New("invalid record id")
)

// Store is a directory of interview records. Writes replace whole files.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	// mu serializes location allocation and writes within this process.
	mu sync.Mutex
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("storage"),
		now:    time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Create allocates a new location for subject. The file is not written
// until Save.
func (s *Store) Create(subject string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(subject)
}

func (s *Store) create(subject string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory %s: %w", ErrStorage, s.dir, err)
	}

	base := Slug(subject) + "_" + s.now().Format(timestampForm)
	location := filepath.Join(s.dir, base+recordExt)
	if _, err := os.Stat(location); err == nil {
		location = filepath.Join(s.dir, base+"_"+uuid.NewString()[:8]+recordExt)
	}
	return location, nil
}

// Save writes the finalized progress of state with the given extraction
// result. A state without a location gets a new one, which is bound to the
// state only after the write succeeds.
func (s *Store) Save(state *interview.SessionState, extracted map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := state.Location()
	if location == "" {
		var err error
		if location, err = s.create(state.Subject()); err != nil {
			return "", err
		}
	}

	rec := NewRecord(state, extracted, s.now())
	if err := s.write(location, rec); err != nil {
		return "", err
	}
	if err := state.BindLocation(location); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Info("interview saved",
		zap.String("location", location),
		zap.Bool("completed", rec.Metadata.Completed),
		zap.Int("answers", rec.Metadata.TotalAnswers))
	return location, nil
}

// SaveExtracted replaces the extracted data of an existing record.
func (s *Store) SaveExtracted(location string, extracted map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.ReadRecord(location)
	if err != nil {
		return nil, err
	}
	rec.ExtractedData = extracted
	rec.Metadata.SavedAt = s.now()
	if err := s.write(location, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Load rebuilds a session from the record at location. It returns nil when
// the record is missing or cannot be resumed against bank.
func (s *Store) Load(location string, bank *interview.QuestionBank) *interview.SessionState {
	rec, err := s.ReadRecord(location)
	if err != nil {
		s.logger.Warn("record could not be read", zap.String("location", location), zap.Error(err))
		return nil
	}

	state, err := interview.Resume(rec.ResumeParams(bank, location), bank)
	if err != nil {
		s.logger.Warn("record could not be resumed", zap.String("location", location), zap.Error(err))
		return nil
	}
	return state
}

// ReadRecord decodes the record at location, upgrading the legacy layout.
func (s *Store) ReadRecord(location string) (*Record, error) {
	data, err := os.ReadFile(location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, location, err)
	}

	return decodeRecord(data)
}

func decodeRecord(data []byte) (*Record, error) {
	var shape struct {
		SubjectName string `json:"subject_name"`
		ParentName  string `json:"parent_name"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", ErrStorage, err)
	}

	switch {
	case shape.SubjectName != "":
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %w", ErrStorage, err)
		}
		return &rec, nil
	case shape.ParentName != "":
		var legacy legacyRecord
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("%w: decode legacy record: %w", ErrStorage, err)
		}
		return legacy.upgrade(), nil
	default:
		return nil, fmt.Errorf("%w: record has no subject name", ErrStorage)
	}
}

// List returns stored records, most recently modified first. Unreadable
// records are logged and skipped.
func (s *Store) List() ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read directory %s: %w", ErrStorage, s.dir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || filepath.Ext(name) != recordExt || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}

		location := filepath.Join(s.dir, name)
		rec, err := s.ReadRecord(location)
		if err != nil {
			s.logger.Warn("skipping unreadable record", zap.String("location", location), zap.Error(err))
			continue
		}

		entries = append(entries, Entry{
			ID:             strings.TrimSuffix(name, recordExt),
			Location:       location,
			SubjectName:    rec.SubjectName,
			Completed:      rec.Metadata.Completed,
			TotalAnswers:   len(rec.Answers),
			TotalFollowups: rec.Metadata.TotalFollowups,
			SavedAt:        rec.Metadata.SavedAt,
			ModifiedAt:     info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
	})
	return entries, nil
}

// Delete removes the record at location. Missing records are not an error.
func (s *Store) Delete(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", ErrStorage, location, err)
	}
	s.logger.Info("record deleted", zap.String("location", location))
	return nil
}

// LocationOf resolves a record id to its location inside the store.
func (s *Store) LocationOf(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+recordExt), nil
}

// IDOf returns the record id for a location.
func IDOf(location string) string {
	return strings.TrimSuffix(filepath.Base(location), recordExt)
}

// write replaces the file at location through a temp file and rename so
// readers never observe a partial record.
func (s *Store) write(location string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", ErrStorage, err)
	}

	dir := filepath.Dir(location)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", ErrStorage, dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStorage, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", ErrStorage, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %w", ErrStorage, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", ErrStorage, tmpName, err)
	}
	if err := os.Rename(tmpName, location); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %w", ErrStorage, location, err)
	}
	return nil
}

// Slug keeps letters, digits, spaces, hyphens and underscores, then turns
// spaces into underscores.
func Slug(subject string) string {
	var b strings.Builder
	for _, r := range subject {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	slug := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if slug == "" {
		return "interview"
	}
	return slug
}
