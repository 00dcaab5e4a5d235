// Package store is spoq's peripheral persistence layer: JSON blobs for
// threads, tasks, credentials, and update state under a user-home
// directory (spec §6 "Persisted state"). It is not a database — no
// schema migration, no query layer, unknown fields are simply dropped on
// decode. Every write goes through a temp-file-then-rename so a crash
// mid-write can never corrupt the previous contents.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store roots all persisted state at BaseDir, defaulting to
// "$HOME/.spoq" (adapted from the teacher's own "~/.openclaude" layout).
type Store struct {
	BaseDir string
}

// New constructs a Store using the default base directory.
func New() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	return &Store{BaseDir: filepath.Join(home, ".spoq")}, nil
}

// NewAt constructs a Store rooted at an explicit directory, for tests.
func NewAt(dir string) *Store {
	return &Store{BaseDir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.BaseDir, name+".json")
}

// WriteJSON atomically persists v as the named blob: marshal to a temp
// file in the same directory, fsync, then rename over the target. The
// same-directory temp file keeps the rename atomic within one filesystem.
func (s *Store) WriteJSON(name string, v any) error {
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename temp file for %s: %w", name, err)
	}
	return nil
}

// ReadJSON loads the named blob into v. Unknown fields in the stored JSON
// are silently ignored by encoding/json's default decode behavior — there
// is no schema migration step. A missing file is reported via the
// returned error (callers should treat os.IsNotExist as "first run").
func (s *Store) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

// Threads is the on-disk shape of the thread list blob.
type Threads struct {
	Threads []ThreadRecord `json:"threads"`
}

// ThreadRecord is one persisted thread's durable identity and metadata —
// not its live message cache, which is process-lifetime only (internal/cache).
type ThreadRecord struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ThreadType     string `json:"thread_type"`
	PermissionMode string `json:"permission_mode"`
}

// LoadThreads reads the persisted thread list, returning an empty value
// (not an error) when the file has never been written.
func (s *Store) LoadThreads() (Threads, error) {
	var out Threads
	if err := s.ReadJSON("threads", &out); err != nil {
		if os.IsNotExist(err) {
			return Threads{}, nil
		}
		return Threads{}, err
	}
	return out, nil
}

// SaveThreads atomically persists the thread list.
func (s *Store) SaveThreads(t Threads) error {
	return s.WriteJSON("threads", t)
}

// Tasks is the on-disk shape of the todo/task blob for a single thread.
type Tasks struct {
	ThreadID string      `json:"thread_id"`
	Todos    []TaskEntry `json:"todos"`
}

// TaskEntry mirrors internal/session.Todo's durable fields.
type TaskEntry struct {
	Content    string `json:"content"`
	ActiveForm string `json:"active_form"`
	Status     string `json:"status"`
}

// LoadTasks reads the persisted task list for a thread.
func (s *Store) LoadTasks(threadID string) (Tasks, error) {
	var out Tasks
	if err := s.ReadJSON("tasks-"+threadID, &out); err != nil {
		if os.IsNotExist(err) {
			return Tasks{ThreadID: threadID}, nil
		}
		return Tasks{}, err
	}
	return out, nil
}

// SaveTasks atomically persists a thread's task list.
func (s *Store) SaveTasks(t Tasks) error {
	return s.WriteJSON("tasks-"+t.ThreadID, t)
}

// Credentials is the on-disk shape of the auth credential blob. Spec §5
// treats the credential file as filesystem-locked and read-at-start,
// write-on-refresh; Store's atomic rename satisfies the "locked, atomic
// rename on write" requirement without a separate file-lock primitive,
// since a single spoq process owns the file for its whole lifetime.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// LoadCredentials reads the persisted credential blob.
func (s *Store) LoadCredentials() (Credentials, error) {
	var out Credentials
	err := s.ReadJSON("credentials", &out)
	return out, err
}

// SaveCredentials atomically persists refreshed credentials.
func (s *Store) SaveCredentials(c Credentials) error {
	return s.WriteJSON("credentials", c)
}

// UpdateState is the on-disk shape of the `--update` command's tracked state.
type UpdateState struct {
	LastCheckedVersion string `json:"last_checked_version"`
	LastCheckedAt      string `json:"last_checked_at"`
}

// LoadUpdateState reads the persisted update-check state.
func (s *Store) LoadUpdateState() (UpdateState, error) {
	var out UpdateState
	if err := s.ReadJSON("update-state", &out); err != nil {
		if os.IsNotExist(err) {
			return UpdateState{}, nil
		}
		return UpdateState{}, err
	}
	return out, nil
}

// SaveUpdateState atomically persists update-check state.
func (s *Store) SaveUpdateState(u UpdateState) error {
	return s.WriteJSON("update-state", u)
}
