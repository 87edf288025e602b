// Package session provides run recording and persistence. A session is a
// write-only forensic record of one agent run; it is never read back into
// a later run.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status constants for sessions.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"  // final query executed
	StatusExhausted = "exhausted" // round budget spent without a final query
	StatusFailed    = "failed"    // backend failure aborted the run
)

// Event types for the session log.
const (
	EventRunStart   = "run_start"
	EventRunEnd     = "run_end"
	EventRoundStart = "round_start"
	EventUser       = "user"        // rendered prompt sent as the opening turn
	EventAssistant  = "assistant"   // free-text model reply
	EventToolCall   = "tool_call"   // tool invocation started
	EventToolResult = "tool_result" // tool completed
	EventToolError  = "tool_error"  // tool failed; fed back as feedback
	EventWarning    = "warning"     // e.g. budget exhausted
)

// Session represents one agent run.
type Session struct {
	ID           string    `json:"id"`
	DatabasePath string    `json:"database_path"`
	Request      string    `json:"request"`
	Budget       int       `json:"budget"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
	Events       []Event   `json:"events"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Internal state (not persisted)
	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single entry in the session log. Events are append-only and
// ordered by SeqID; replay tools rely on that ordering.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Round int `json:"round,omitempty"` // 1-based round this event belongs to

	Content string                 `json:"content,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Error   string                 `json:"error,omitempty"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Model      string `json:"model,omitempty"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
}

// AddEvent appends an event with automatic sequencing and returns its SeqID.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = atomic.AddUint64(&s.seqCounter, 1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// Store is the interface for session persistence.
type Store interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
}

// Manager manages session lifecycle against a store.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager creates a new session manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create creates and persists a new session.
func (m *Manager) Create(dbPath, request string, budget int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		DatabasePath: dbPath,
		Request:      request,
		Budget:       budget,
		Status:       StatusRunning,
		Events:       []Event{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Update saves changes to a session.
func (m *Manager) Update(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess.UpdatedAt = time.Now()
	return m.store.Save(sess)
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Load(id)
}

// JSONL record types for the streaming file format.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer"
)

// JSONLRecord is a wrapper for JSONL lines with type discrimination.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields
	ID           string    `json:"id,omitempty"`
	DatabasePath string    `json:"database_path,omitempty"`
	Request      string    `json:"request,omitempty"`
	Budget       int       `json:"budget,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`

	// Event fields
	*Event `json:",omitempty"`

	// Footer fields
	Status    string    `json:"status,omitempty"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore implements Store using one JSONL file per session.
type FileStore struct {
	dir string
}

// NewFileStore creates a new file-based store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file path for a session ID.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save persists a session to disk in JSONL format.
func (s *FileStore) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	f, err := os.Create(s.Path(sess.ID))
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	header := JSONLRecord{
		RecordType:   RecordTypeHeader,
		ID:           sess.ID,
		DatabasePath: sess.DatabasePath,
		Request:      sess.Request,
		Budget:       sess.Budget,
		CreatedAt:    sess.CreatedAt,
	}
	if err := writeLine(f, header); err != nil {
		return err
	}

	for i := range sess.Events {
		record := JSONLRecord{
			RecordType: RecordTypeEvent,
			Event:      &sess.Events[i],
			// The footer's Error field masks the promoted Event.Error in
			// encoding/json, so the event's error rides the outer field.
			Error: sess.Events[i].Error,
		}
		if err := writeLine(f, record); err != nil {
			return err
		}
	}

	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		Error:      sess.Error,
		UpdatedAt:  sess.UpdatedAt,
	}
	return writeLine(f, footer)
}

func writeLine(f *os.File, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

// Load reads a session from disk.
func (s *FileStore) Load(id string) (*Session, error) {
	return LoadFile(s.Path(id))
}

// LoadFile reads a session from a specific JSONL file.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	sess := &Session{Events: []Event{}}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record JSONLRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse session record: %w", err)
		}
		switch record.RecordType {
		case RecordTypeHeader:
			sess.ID = record.ID
			sess.DatabasePath = record.DatabasePath
			sess.Request = record.Request
			sess.Budget = record.Budget
			sess.CreatedAt = record.CreatedAt
		case RecordTypeEvent:
			if record.Event != nil {
				evt := *record.Event
				evt.Error = record.Error
				sess.Events = append(sess.Events, evt)
			}
		case RecordTypeFooter:
			sess.Status = record.Status
			sess.Result = record.Result
			sess.Error = record.Error
			sess.UpdatedAt = record.UpdatedAt
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	// Restore the sequence counter so AddEvent stays monotonic after load.
	if n := len(sess.Events); n > 0 {
		sess.seqCounter = sess.Events[n-1].SeqID
	}

	return sess, nil
}
