// Package taskregistry is the node-local durable registry of persistent
// analytics task assignments. The task controller reports lifecycle state
// changes here; operator surfaces read it to list and stop tasks.
package taskregistry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store persists and loads TaskRecords from an on-disk directory.
//
// Directory layout:
//
//	<root>/<task_id>/task.json
//
// Root is expected to be under the app data dir.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) TaskDir(taskID string) string {
	return filepath.Join(s.root, taskID)
}

func (s *Store) TaskPath(taskID string) string {
	return filepath.Join(s.TaskDir(taskID), "task.json")
}

func (s *Store) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("task registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

func (s *Store) Write(record *TaskRecord) error {
	if record == nil {
		return fmt.Errorf("task record is nil")
	}
	taskID := strings.TrimSpace(record.TaskID)
	if taskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	taskDir := s.TaskDir(taskID)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(taskDir, "task.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp task file: %w", err)
	}

	finalPath := s.TaskPath(taskID)
	if err := os.Rename(tmpName, finalPath); err != nil {
		return fmt.Errorf("rename task file: %w", err)
	}
	return nil
}

func (s *Store) Get(taskID string) (*TaskRecord, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	path := s.TaskPath(taskID)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("task.json is empty")
	}

	var record TaskRecord
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse task.json: %w", err)
	}

	return &record, nil
}

func (s *Store) List() ([]TaskRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks root: %w", err)
	}

	out := make([]TaskRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}
