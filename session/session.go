package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robertftenbosch/parakeet/errors"
)

// Message roles. Tool messages carry exactly one ToolCall whose ID
// correlates the result with the call that produced it.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Session is one persisted conversation. The process serving it owns it
// exclusively while active.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Truncate drops the oldest messages until at most max remain. A pinned
// leading system message is never dropped, and an assistant message that
// requested tool calls is dropped together with its tool-result messages
// so a call is never orphaned from its result.
func (s *Session) Truncate(max int) {
	if max <= 0 || len(s.Messages) <= max {
		return
	}

	var pinned []Message
	msgs := s.Messages
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		pinned = msgs[:1]
		msgs = msgs[1:]
		max--
	}

	for len(msgs) > max {
		n := 1
		if len(msgs[0].ToolCalls) > 0 && msgs[0].Role == RoleAssistant {
			for n < len(msgs) && msgs[n].Role == RoleTool {
				n++
			}
		}
		msgs = msgs[n:]
	}
	// A leading orphan tool result can only appear in histories written
	// before truncation; drop it with the same rule.
	for len(msgs) > 0 && msgs[0].Role == RoleTool {
		msgs = msgs[1:]
	}

	s.Messages = append(append([]Message{}, pinned...), msgs...)
}

// Summary describes a stored session for listing.
type Summary struct {
	ID           string
	CreatedAt    time.Time
	UserMessages int
	Path         string
}

// Store persists sessions as one JSON file each under a directory, with a
// "current" pointer file naming the most recently saved session.
type Store struct {
	dir         string
	maxMessages int
}

// DefaultDir returns the standard session directory under the user's home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "could not determine home directory")
	}
	return filepath.Join(home, ".parakeet", "sessions"), nil
}

// NewStore creates (if needed) and opens a session store rooted at dir.
// maxMessages caps retained history per session; zero disables truncation.
func NewStore(dir string, maxMessages int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WrapKind(err, errors.KindStorage, "could not create session directory")
	}
	return &Store{dir: dir, maxMessages: maxMessages}, nil
}

// Create returns a new empty session with a generated id. The session is
// not persisted until the first Save.
func (st *Store) Create() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Save writes the session atomically: serialize to a temp file in the same
// directory, then rename over the target so an interrupted write never
// leaves a partial record. It also updates the current-session pointer.
func (st *Store) Save(s *Session) error {
	s.Truncate(st.maxMessages)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.WrapKind(err, errors.KindStorage, "failed to serialize session %s", s.ID)
	}

	tmp, err := os.CreateTemp(st.dir, s.ID+".tmp-*")
	if err != nil {
		return errors.WrapKind(err, errors.KindStorage, "failed to create temp file for session %s", s.ID)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapKind(err, errors.KindStorage, "failed to write session %s", s.ID)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapKind(err, errors.KindStorage, "failed to close temp file for session %s", s.ID)
	}
	if err := os.Rename(tmpName, st.path(s.ID)); err != nil {
		os.Remove(tmpName)
		return errors.WrapKind(err, errors.KindStorage, "failed to replace session file %s", s.ID)
	}

	if err := os.WriteFile(st.currentPath(), []byte(s.ID), 0644); err != nil {
		return errors.WrapKind(err, errors.KindStorage, "failed to update current session pointer")
	}
	return nil
}

// Load reads a stored session by id.
func (st *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(st.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewKind(errors.KindNotFound, "session '%s' not found", id)
		}
		return nil, errors.WrapKind(err, errors.KindStorage, "could not read session '%s'", id)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapKind(err, errors.KindStorage, "could not parse session '%s'", id)
	}
	return &s, nil
}

// CurrentID returns the id of the most recently saved session, or "" if
// no pointer exists.
func (st *Store) CurrentID() string {
	data, err := os.ReadFile(st.currentPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// LoadCurrent resumes the most recently saved session.
func (st *Store) LoadCurrent() (*Session, error) {
	id := st.CurrentID()
	if id == "" {
		return nil, errors.NewKind(errors.KindNotFound, "no current session")
	}
	return st.Load(id)
}

// List returns summaries of all stored sessions, most recent first.
func (st *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindStorage, "could not read session directory")
	}

	var summaries []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		s, err := st.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// Unreadable files are skipped, not fatal for listing.
			continue
		}
		userMessages := 0
		for _, m := range s.Messages {
			if m.Role == RoleUser {
				userMessages++
			}
		}
		summaries = append(summaries, Summary{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			UserMessages: userMessages,
			Path:         st.path(s.ID),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Delete removes a stored session. Irreversible.
func (st *Store) Delete(id string) error {
	if err := os.Remove(st.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewKind(errors.KindNotFound, "session '%s' not found", id)
		}
		return errors.WrapKind(err, errors.KindStorage, "could not delete session '%s'", id)
	}
	if st.CurrentID() == id {
		os.Remove(st.currentPath())
	}
	return nil
}

// Clear removes all stored sessions and the current pointer. Irreversible.
// Returns the number of sessions removed.
func (st *Store) Clear() (int, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return 0, errors.WrapKind(err, errors.KindStorage, "could not read session directory")
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(st.dir, e.Name())); err != nil {
			return count, errors.WrapKind(err, errors.KindStorage, "could not delete '%s'", e.Name())
		}
		count++
	}
	os.Remove(st.currentPath())
	return count, nil
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, fmt.Sprintf("%s.json", id))
}

func (st *Store) currentPath() string {
	return filepath.Join(st.dir, "current")
}
