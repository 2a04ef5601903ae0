package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/logging"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Directory names under the backlog root.
const (
	TasksDirName      = "tasks"
	DocsDirName       = "docs"
	DecisionsDirName  = "decisions"
	MilestonesDirName = "milestones"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store reads and writes backlog entities as markdown files with YAML
// frontmatter under a single root directory.
type Store struct {
	fs     afero.Fs
	root   string
	prefix string
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFs replaces the OS filesystem. Tests use afero.NewMemMapFs.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithTaskPrefix sets the task id prefix (default "task").
func WithTaskPrefix(prefix string) Option {
	return func(s *Store) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = strings.ToLower(p)
		}
	}
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store rooted at root.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		fs:     afero.NewOsFs(),
		root:   filepath.Clean(root),
		prefix: model.DefaultTaskPrefix,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("filesystem")
	return s
}

// Root returns the backlog root directory.
func (s *Store) Root() string { return s.root }

// TasksDir returns the tasks directory.
func (s *Store) TasksDir() string { return filepath.Join(s.root, TasksDirName) }

// DocsDir returns the documents root.
func (s *Store) DocsDir() string { return filepath.Join(s.root, DocsDirName) }

// DecisionsDir returns the decisions directory.
func (s *Store) DecisionsDir() string { return filepath.Join(s.root, DecisionsDirName) }

// MilestonesDir returns the milestones directory.
func (s *Store) MilestonesDir() string { return filepath.Join(s.root, MilestonesDirName) }

// TaskPrefix returns the lower-cased task id prefix.
func (s *Store) TaskPrefix() string { return s.prefix }

// EnsureBacklogStructure creates the backlog root and its entity
// directories if they do not exist.
func (s *Store) EnsureBacklogStructure(ctx context.Context) error {
	for _, dir := range []string{s.TasksDir(), s.DocsDir(), s.DecisionsDir(), s.MilestonesDir()} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func (s *Store) FileExists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile returns the contents of path.
func (s *Store) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// ParseTask parses task content read from path.
func (s *Store) ParseTask(path string, content []byte) (*model.Task, error) {
	return ParseTask(path, content, s.prefix)
}

// ParseDocument parses document content read from path. The document's
// relative path is derived from the docs root.
func (s *Store) ParseDocument(path string, content []byte) (*model.Document, error) {
	rel, err := filepath.Rel(s.DocsDir(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return ParseDocument(path, rel, content)
}

// ParseDecision parses decision content read from path.
func (s *Store) ParseDecision(path string, content []byte) (*model.Decision, error) {
	return ParseDecision(path, content)
}

// IsTaskFile reports whether name follows the task file naming convention.
func (s *Store) IsTaskFile(name string) bool {
	_, ok := TaskIDFromFilename(name, s.prefix)
	return ok
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

// listDir returns the regular files directly inside dir whose names pass
// accept. A missing directory yields no files.
func (s *Store) listDir(dir string, accept func(string) bool) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !accept(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// ListTasks loads every parsable task. Files that fail to parse are skipped
// and logged.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	paths, err := s.listDir(s.TasksDir(), s.IsTaskFile)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := s.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable task", "path", path, "error", err)
			continue
		}
		task, err := s.ParseTask(path, content)
		if err != nil {
			s.logger.Warn("skipping unparsable task", "path", path, "error", err)
			continue
		}
		tasks = append(tasks, *task)
	}
	model.SortTasks(tasks)
	return tasks, nil
}

// ListDocuments loads every parsable document under the docs root,
// including nested folders.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	root := s.DocsDir()
	if exists, err := afero.DirExists(s.fs, root); err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	} else if !exists {
		return []model.Document{}, nil
	}

	docs := []model.Document{}
	err := afero.Walk(s.fs, root, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := DocumentIDFromFilename(info.Name()); !ok {
			return nil
		}
		content, err := s.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}
		doc, err := s.ParseDocument(path, content)
		if err != nil {
			s.logger.Warn("skipping unparsable document", "path", path, "error", err)
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	model.SortDocuments(docs)
	return docs, nil
}

// ListDecisions loads every parsable decision.
func (s *Store) ListDecisions(ctx context.Context) ([]model.Decision, error) {
	paths, err := s.listDir(s.DecisionsDir(), func(name string) bool {
		_, ok := DecisionIDFromFilename(name)
		return ok
	})
	if err != nil {
		return nil, err
	}
	decisions := make([]model.Decision, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := s.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable decision", "path", path, "error", err)
			continue
		}
		d, err := s.ParseDecision(path, content)
		if err != nil {
			s.logger.Warn("skipping unparsable decision", "path", path, "error", err)
			continue
		}
		decisions = append(decisions, *d)
	}
	model.SortDecisions(decisions)
	return decisions, nil
}

// ListMilestones loads every parsable milestone, sorted by id.
func (s *Store) ListMilestones(ctx context.Context) ([]model.Milestone, error) {
	paths, err := s.listDir(s.MilestonesDir(), func(name string) bool {
		_, ok := MilestoneIDFromFilename(name)
		return ok
	})
	if err != nil {
		return nil, err
	}
	milestones := make([]model.Milestone, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := s.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable milestone", "path", path, "error", err)
			continue
		}
		m, err := ParseMilestone(path, content)
		if err != nil {
			s.logger.Warn("skipping unparsable milestone", "path", path, "error", err)
			continue
		}
		milestones = append(milestones, *m)
	}
	sortMilestones(milestones)
	return milestones, nil
}

func sortMilestones(ms []model.Milestone) {
	slices.SortStableFunc(ms, func(a, b model.Milestone) int {
		return model.CompareIDs(a.ID, b.ID)
	})
}

// LoadTask loads a single task by id. It returns (nil, nil) when no task
// file carries that id.
func (s *Store) LoadTask(ctx context.Context, id string) (*model.Task, error) {
	path, err := s.findTaskFile(id)
	if err != nil || path == "" {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := s.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.ParseTask(path, content)
}

// findTaskFile returns the path of the task file for id, or "" when none
// exists.
func (s *Store) findTaskFile(id string) (string, error) {
	want := model.CanonicalKey(id, s.prefix)
	paths, err := s.listDir(s.TasksDir(), s.IsTaskFile)
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		fileID, _ := TaskIDFromFilename(filepath.Base(path), s.prefix)
		if model.CanonicalKey(fileID, s.prefix) == want {
			return path, nil
		}
	}
	return "", nil
}

// -----------------------------------------------------------------------------
// Writing
// -----------------------------------------------------------------------------

// writeAtomic writes through a temporary sibling and renames it into place
// so watchers never observe a partially written entity file.
func (s *Store) writeAtomic(path string, content []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, content, filePerm); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

// SaveTask writes a task file and returns its path. A task whose title
// changed is renamed: the previous file for the same id is removed.
func (s *Store) SaveTask(ctx context.Context, task model.Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(task.ID) == "" {
		return "", errors.NewValidationError("task id is required").WithField("id")
	}
	if strings.TrimSpace(task.Title) == "" {
		return "", errors.NewValidationError("task title is required").WithField("title")
	}

	previous, err := s.findTaskFile(task.ID)
	if err != nil {
		return "", err
	}
	content, err := RenderTask(task)
	if err != nil {
		return "", fmt.Errorf("render task %s: %w", task.ID, err)
	}
	path := filepath.Join(s.TasksDir(), EntityFilename(task.ID, task.Title))
	if err := s.writeAtomic(path, content); err != nil {
		return "", fmt.Errorf("write task %s: %w", task.ID, err)
	}
	if previous != "" && previous != path {
		if err := s.fs.Remove(previous); err != nil && !os.IsNotExist(err) {
			return path, fmt.Errorf("remove stale task file: %w", err)
		}
	}
	return path, nil
}

// DeleteTask removes the task file for id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.findTaskFile(id)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.NewNotFoundError("task", id)
	}
	return s.fs.Remove(path)
}

// SaveDocument writes a document. Its Path, when set, is honored relative to
// the docs root; otherwise a file name is derived from id and title.
func (s *Store) SaveDocument(ctx context.Context, doc model.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.ID) == "" {
		return "", errors.NewValidationError("document id is required").WithField("id")
	}
	rel := doc.Path
	if rel == "" {
		rel = EntityFilename(doc.ID, doc.Title)
	}
	path := filepath.Join(s.DocsDir(), filepath.FromSlash(rel))
	content, err := RenderDocument(doc)
	if err != nil {
		return "", fmt.Errorf("render document %s: %w", doc.ID, err)
	}
	if err := s.writeAtomic(path, content); err != nil {
		return "", fmt.Errorf("write document %s: %w", doc.ID, err)
	}
	return path, nil
}

// SaveDecision writes a decision file.
func (s *Store) SaveDecision(ctx context.Context, d model.Decision) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(d.ID) == "" {
		return "", errors.NewValidationError("decision id is required").WithField("id")
	}
	path := filepath.Join(s.DecisionsDir(), EntityFilename(d.ID, d.Title))
	content, err := RenderDecision(d)
	if err != nil {
		return "", fmt.Errorf("render decision %s: %w", d.ID, err)
	}
	if err := s.writeAtomic(path, content); err != nil {
		return "", fmt.Errorf("write decision %s: %w", d.ID, err)
	}
	return path, nil
}

// SaveMilestone writes a milestone file.
func (s *Store) SaveMilestone(ctx context.Context, m model.Milestone) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(m.ID) == "" {
		return "", errors.NewValidationError("milestone id is required").WithField("id")
	}
	path := filepath.Join(s.MilestonesDir(), EntityFilename(m.ID, m.Title))
	content, err := RenderMilestone(m)
	if err != nil {
		return "", fmt.Errorf("render milestone %s: %w", m.ID, err)
	}
	if err := s.writeAtomic(path, content); err != nil {
		return "", fmt.Errorf("write milestone %s: %w", m.ID, err)
	}
	return path, nil
}
