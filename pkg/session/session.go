package session

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/jmuk/sleek/pkg/design"
)

const (
	sessionIDsFile  = "session-ids.txt"
	sessionMetaFile = "session.toml"
	stateFile       = "state.json"
	historyFile     = "history.jsonl"
)

type sessionMeta struct {
	SessionID  string    `toml:"session_id"`
	Timestamp  time.Time `toml:"timestamp"`
	WorkingDir string    `toml:"path"`
	Backend    string    `toml:"backend,omitempty"`
}

type logHandler struct {
	f *os.File
	h slog.Handler
}

func newLogHandler(p string, opts *slog.HandlerOptions) (*logHandler, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &logHandler{
		f: f,
		h: slog.NewJSONHandler(f, opts),
	}, nil
}

func (h *logHandler) Close() error {
	return h.f.Close()
}

// Store keeps sessions under a root directory, by default the user cache dir.
type Store struct {
	root  string
	level slog.Level
}

func NewStore(root string) *Store {
	return &Store{root: root, level: slog.LevelDebug}
}

func (st *Store) Root() string {
	return st.root
}

// SetLogLevel sets the level of session loggers created afterwards.
func (st *Store) SetLogLevel(l slog.Level) {
	st.level = l
}

// DefaultStore returns the store in the user cache dir.
func DefaultStore() (*Store, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(cacheDir, "sleek")), nil
}

type Session struct {
	meta        sessionMeta
	sessionPath string
	store       *Store

	mu       sync.Mutex
	handlers map[string]*logHandler
	files    map[string]*os.File
}

func (s *Session) ID() string {
	return s.meta.SessionID
}

func (s *Session) Timestamp() time.Time {
	return s.meta.Timestamp
}

func (s *Session) WorkingDir() string {
	return s.meta.WorkingDir
}

func (s *Session) Backend() string {
	return s.meta.Backend
}

// SetBackend records the backend the session talks to.
func (s *Session) SetBackend(name string) error {
	s.meta.Backend = name
	return s.writeMeta()
}

func (s *Session) Path() string {
	return s.sessionPath
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.meta.SessionID, s.meta.Timestamp.Format(time.DateTime))
}

func (st *Store) workingDir(p string) string {
	h := sha256.Sum256([]byte(p))
	return filepath.Join(st.root, "paths", hex.EncodeToString(h[:]))
}

func (st *Store) sessionDir(id string) string {
	return filepath.Join(st.root, "sessions", id)
}

func (s *Session) updateSessionsFile(workingDir string) error {
	sessionsFile := filepath.Join(workingDir, sessionIDsFile)
	sessionsContent, err := os.ReadFile(sessionsFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		sessionsContent = []byte{}
	}
	var lines []string
	for line := range strings.Lines(string(sessionsContent)) {
		line = strings.TrimSpace(line)
		if line == s.meta.SessionID {
			return nil
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	lines = append(lines, s.meta.SessionID)
	return os.WriteFile(sessionsFile, []byte(strings.Join(lines, "\n")), 0644)
}

func (s *Session) writeMeta() error {
	encodedMeta, err := toml.Marshal(s.meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.sessionPath, sessionMetaFile), encodedMeta, 0644)
}

func (s *Session) init() error {
	workingDir := s.store.workingDir(s.meta.WorkingDir)
	if err := os.MkdirAll(workingDir, 0755); err != nil {
		return err
	}
	if err := s.updateSessionsFile(workingDir); err != nil {
		return err
	}
	if err := os.MkdirAll(s.sessionPath, 0755); err != nil {
		return err
	}
	return s.writeMeta()
}

// New starts a session for the working directory cwd.
func (st *Store) New(cwd string) (*Session, error) {
	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	s := &Session{
		meta: sessionMeta{
			SessionID:  sessionUUID.String(),
			Timestamp:  time.Now(),
			WorkingDir: cwd,
		},
		sessionPath: st.sessionDir(sessionUUID.String()),
		store:       st,
		handlers:    map[string]*logHandler{},
		files:       map[string]*os.File{},
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads an existing session.
func (st *Store) Open(sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("illformed session ID %s: %w", sessionID, err)
	}
	sessionDir := st.sessionDir(sessionID)
	if finfo, err := os.Stat(sessionDir); err != nil {
		return nil, err
	} else if !finfo.IsDir() {
		return nil, fmt.Errorf("path %s is not a directory", sessionDir)
	}

	metadata, err := os.ReadFile(filepath.Join(sessionDir, sessionMetaFile))
	if err != nil {
		return nil, err
	}
	var m sessionMeta
	if err := toml.Unmarshal(metadata, &m); err != nil {
		return nil, err
	}
	return &Session{
		meta:        m,
		sessionPath: sessionDir,
		store:       st,
		handlers:    map[string]*logHandler{},
		files:       map[string]*os.File{},
	}, nil
}

// List returns the sessions started in cwd, newest first.
func (st *Store) List(cwd string) ([]*Session, error) {
	workingDir := st.workingDir(cwd)
	content, err := os.ReadFile(filepath.Join(workingDir, sessionIDsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var results []*Session
	for line := range strings.Lines(string(content)) {
		s, err := st.Open(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		if s.meta.WorkingDir == cwd {
			results = append(results, s)
		}
	}
	slices.Reverse(results)
	return results, nil
}

func (s *Session) logPath() string {
	return filepath.Join(s.sessionPath, "logs")
}

func (s *Session) NewLogHandler(name string) (slog.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handlers[name]; ok {
		return h.h, nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	pathName := name
	if !strings.Contains(name, ".") {
		pathName = name + ".jsonl"
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	h, err := newLogHandler(filepath.Join(s.logPath(), pathName), &slog.HandlerOptions{Level: s.store.level})
	if err != nil {
		return nil, err
	}
	s.handlers[name] = h
	return h.h, nil
}

// GetLogger returns a JSON logger writing to logs/<name>.jsonl.
func (s *Session) GetLogger(name string) (*slog.Logger, error) {
	h, err := s.NewLogHandler(name)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// GetLogFile returns a raw writer under logs/.
func (s *Session) GetLogFile(name string) (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(s.logPath(), name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// LoadState reads the saved screens and theme. A session without saved state
// yields an empty state.
func (s *Session) LoadState() (*design.State, error) {
	st := design.New()
	data, err := os.ReadFile(filepath.Join(s.sessionPath, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", stateFile, err)
	}
	return st, nil
}

func (s *Session) SaveState(st *design.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.sessionPath, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.sessionPath, stateFile))
}

// AppendHistory writes each value as one JSON line of history.jsonl.
func AppendHistory[T any](s *Session, items ...T) error {
	f, err := os.OpenFile(filepath.Join(s.sessionPath, historyFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// LoadHistory reads history.jsonl.
func LoadHistory[T any](s *Session) ([]T, error) {
	f, err := os.Open(filepath.Join(s.sessionPath, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var results []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", historyFile, err)
		}
		results = append(results, item)
	}
	return results, scanner.Err()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var allerr error
	for name, h := range s.handlers {
		if err := h.Close(); err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	for name, f := range s.files {
		if err := f.Close(); err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	s.handlers = map[string]*logHandler{}
	s.files = map[string]*os.File{}
	return allerr
}

type sessionKey struct{}

func With(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

// Logger returns the named session logger for ctx, or the default logger when
// ctx carries no session.
func Logger(ctx context.Context, name string) *slog.Logger {
	s, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	logger, err := s.GetLogger(name)
	if err != nil {
		return slog.Default()
	}
	return logger
}
