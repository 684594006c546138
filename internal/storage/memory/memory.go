package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taskforge/taskforge/internal/log"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	projects  map[string]model.Project
	tasks     map[string]model.Task
	comments  map[string]model.Comment
	sessions  map[string]model.ExecutionSession
	sandboxes map[string]model.SandboxRecord
	retries   map[string]model.DestroyRetry
	manifests map[string]model.Manifest
	mu        sync.RWMutex
	logger    log.Logger
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		projects:  make(map[string]model.Project),
		tasks:     make(map[string]model.Task),
		comments:  make(map[string]model.Comment),
		sessions:  make(map[string]model.ExecutionSession),
		sandboxes: make(map[string]model.SandboxRecord),
		retries:   make(map[string]model.DestroyRetry),
		manifests: make(map[string]model.Manifest),
		logger:    cfg.Logger,
	}, nil
}

// Close is a no-op, the repository lives in process memory.
func (r *Repository) Close() error { return nil }

// CreateProject creates a new project in the repository.
func (r *Repository) CreateProject(ctx context.Context, p model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; ok {
		return fmt.Errorf("project with id %s: %w", p.ID, model.ErrAlreadyExists)
	}

	r.projects[p.ID] = p
	return nil
}

// GetProject retrieves a project by ID.
func (r *Repository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}

	return &p, nil
}

// ListProjectsByOwner retrieves all projects owned by a user.
func (r *Repository) ListProjectsByOwner(ctx context.Context, ownerUserID string) ([]model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var projects []model.Project
	for _, p := range r.projects {
		if p.OwnerUserID == ownerUserID {
			projects = append(projects, p)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})

	return projects, nil
}

// DeleteProject deletes a project cascading to its tasks, comments, sessions
// and manifests.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	delete(r.projects, id)

	for taskID, t := range r.tasks {
		if t.ProjectID != id {
			continue
		}
		delete(r.tasks, taskID)
		r.deleteTaskChildren(taskID)
	}
	for manifestID, m := range r.manifests {
		if m.ProjectID == id {
			delete(r.manifests, manifestID)
		}
	}

	return nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = t
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return &t, nil
}

// ListTasksByProject retrieves all tasks of a project.
func (r *Repository) ListTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	return tasks, nil
}

// ClaimTaskExecution atomically claims the task for an execution attempt,
// the mutex gives the same compare-and-swap semantics as the SQL conditional
// update.
func (r *Repository) ClaimTaskExecution(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}
	if t.ExecutionState == model.ExecutionStateInProgress {
		return fmt.Errorf("task %s is already executing: %w", taskID, model.ErrAlreadyExists)
	}

	t.ExecutionState = model.ExecutionStateInProgress
	r.tasks[taskID] = t
	return nil
}

// SetTaskExecutionState sets the execution state of a task unconditionally.
func (r *Repository) SetTaskExecutionState(ctx context.Context, taskID string, state model.ExecutionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	t.ExecutionState = state
	r.tasks[taskID] = t
	return nil
}

// DeleteTask deletes a task cascading to its comments and sessions.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	delete(r.tasks, id)
	r.deleteTaskChildren(id)
	return nil
}

// deleteTaskChildren must be called with the write lock held.
func (r *Repository) deleteTaskChildren(taskID string) {
	for commentID, c := range r.comments {
		if c.TaskID == taskID {
			delete(r.comments, commentID)
		}
	}
	for sessionID, s := range r.sessions {
		if s.TaskID == taskID {
			delete(r.sessions, sessionID)
		}
	}
}

// CreateComment appends a comment to a task.
func (r *Repository) CreateComment(ctx context.Context, c model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[c.ID]; ok {
		return fmt.Errorf("comment with id %s: %w", c.ID, model.ErrAlreadyExists)
	}

	r.comments[c.ID] = c
	return nil
}

// ListCommentsByTask retrieves all comments of a task in ascending creation
// order.
func (r *Repository) ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var comments []model.Comment
	for _, c := range r.comments {
		if c.TaskID == taskID {
			comments = append(comments, c)
		}
	}

	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].ID < comments[j].ID
	})

	return comments, nil
}

// CreateSession appends a new execution session to the ledger.
func (r *Repository) CreateSession(ctx context.Context, s model.ExecutionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createSessionLocked(s)
}

func (r *Repository) createSessionLocked(s model.ExecutionSession) error {
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session with id %s: %w", s.ID, model.ErrAlreadyExists)
	}

	r.sessions[s.ID] = s
	return nil
}

// GetLatestSession retrieves the most recent session of a task.
func (r *Repository) GetLatestSession(ctx context.Context, taskID string) (*model.ExecutionSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.ExecutionSession
	for _, s := range r.sessions {
		if s.TaskID != taskID {
			continue
		}
		s := s
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) ||
			(s.CreatedAt.Equal(latest.CreatedAt) && s.ID > latest.ID) {
			latest = &s
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("session for task %s: %w", taskID, model.ErrNotFound)
	}

	return latest, nil
}

// ListSessionsForTasks retrieves all sessions of the given tasks ordered by
// creation time descending. An empty id set short-circuits.
func (r *Repository) ListSessionsForTasks(ctx context.Context, taskIDs []string) ([]model.ExecutionSession, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}

	var sessions []model.ExecutionSession
	for _, s := range r.sessions {
		if wanted[s.TaskID] {
			sessions = append(sessions, s)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})

	return sessions, nil
}

// UpdateSession merges the provided fields into the stored session.
func (r *Repository) UpdateSession(ctx context.Context, id string, u storage.SessionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateSessionLocked(id, u)
}

func (r *Repository) updateSessionLocked(id string, u storage.SessionUpdate) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.SandboxHandle != nil {
		s.SandboxHandle = *u.SandboxHandle
	}
	if u.SandboxURL != nil {
		s.SandboxURL = *u.SandboxURL
	}
	if u.SandboxPassword != nil {
		s.SandboxPassword = *u.SandboxPassword
	}
	if u.WebhookSecret != nil {
		s.WebhookSecret = *u.WebhookSecret
	}
	if u.MessageCount != nil {
		s.MessageCount = *u.MessageCount
	}
	if u.TokenCount != nil {
		s.TokenCount = *u.TokenCount
	}
	if u.CompletedAt != nil {
		if u.CompletedAt.IsZero() {
			s.CompletedAt = nil
		} else {
			t := *u.CompletedAt
			s.CompletedAt = &t
		}
	}

	r.sessions[id] = s
	return nil
}

// CommitExecutionStart persists the session, task branch and audit comment
// as one unit under the write lock.
func (r *Repository) CommitExecutionStart(ctx context.Context, start storage.ExecutionStart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[start.Session.TaskID]
	if !ok {
		return fmt.Errorf("task %s: %w", start.Session.TaskID, model.ErrNotFound)
	}

	if err := r.createSessionLocked(start.Session); err != nil {
		return err
	}

	t.BranchName = start.Session.BranchName
	r.tasks[t.ID] = t

	r.comments[start.Comment.ID] = start.Comment
	return nil
}

// CommitCompletion applies the session update, the task state transition and
// the optional summary comment as one unit under the write lock.
func (r *Repository) CommitCompletion(ctx context.Context, completion storage.ExecutionCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[completion.TaskID]
	if !ok {
		return fmt.Errorf("task %s: %w", completion.TaskID, model.ErrNotFound)
	}

	if err := r.updateSessionLocked(completion.SessionID, completion.Update); err != nil {
		return err
	}

	t.ExecutionState = completion.TaskState
	r.tasks[t.ID] = t

	if completion.Comment != nil {
		r.comments[completion.Comment.ID] = *completion.Comment
	}
	return nil
}

// CreateSandboxRecord creates a new sandbox record.
func (r *Repository) CreateSandboxRecord(ctx context.Context, rec model.SandboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sandboxes {
		if existing.BranchName == rec.BranchName && existing.Purpose == rec.Purpose {
			return fmt.Errorf("sandbox record for branch %q already exists: %w", rec.BranchName, model.ErrAlreadyExists)
		}
	}

	r.sandboxes[rec.ID] = rec
	return nil
}

// GetSandboxRecord retrieves a sandbox record by exact (branch, purpose) match.
func (r *Repository) GetSandboxRecord(ctx context.Context, branch string, purpose model.SandboxPurpose) (*model.SandboxRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.sandboxes {
		if rec.BranchName == branch && rec.Purpose == purpose {
			rec := rec
			return &rec, nil
		}
	}

	return nil, fmt.Errorf("sandbox record for branch %q (%s): %w", branch, purpose, model.ErrNotFound)
}

// DeleteSandboxRecord deletes a sandbox record by ID.
func (r *Repository) DeleteSandboxRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sandboxes, id)
	return nil
}

// EnqueueDestroyRetry stores a failed remote destroy for the reaper.
func (r *Repository) EnqueueDestroyRetry(ctx context.Context, retry model.DestroyRetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.retries[retry.ID] = retry
	return nil
}

// ListDestroyRetries returns the queued destroy retries oldest first.
func (r *Repository) ListDestroyRetries(ctx context.Context) ([]model.DestroyRetry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var retries []model.DestroyRetry
	for _, retry := range r.retries {
		retries = append(retries, retry)
	}

	sort.Slice(retries, func(i, j int) bool {
		if !retries[i].CreatedAt.Equal(retries[j].CreatedAt) {
			return retries[i].CreatedAt.Before(retries[j].CreatedAt)
		}
		return retries[i].ID < retries[j].ID
	})

	return retries, nil
}

// DeleteDestroyRetry removes a retry from the queue.
func (r *Repository) DeleteDestroyRetry(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.retries, id)
	return nil
}

// CreateManifest creates a new manifest in the repository.
func (r *Repository) CreateManifest(ctx context.Context, m model.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.manifests[m.ID]; ok {
		return fmt.Errorf("manifest with id %s: %w", m.ID, model.ErrAlreadyExists)
	}

	r.manifests[m.ID] = m
	return nil
}

// GetManifest retrieves a manifest by ID.
func (r *Repository) GetManifest(ctx context.Context, id string) (*model.Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.manifests[id]
	if !ok {
		return nil, fmt.Errorf("manifest %s: %w", id, model.ErrNotFound)
	}

	return &m, nil
}

// ListActiveManifests retrieves the project's manifests in an active status
// in stable (creation, id) order.
func (r *Repository) ListActiveManifests(ctx context.Context, projectID string) ([]model.Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var manifests []model.Manifest
	for _, m := range r.manifests {
		if m.ProjectID == projectID && m.Status.IsActive() {
			manifests = append(manifests, m)
		}
	}

	sort.Slice(manifests, func(i, j int) bool {
		if !manifests[i].CreatedAt.Equal(manifests[j].CreatedAt) {
			return manifests[i].CreatedAt.Before(manifests[j].CreatedAt)
		}
		return manifests[i].ID < manifests[j].ID
	})

	return manifests, nil
}

// UpdateManifestStatus updates the status of a manifest.
func (r *Repository) UpdateManifestStatus(ctx context.Context, id string, status model.ManifestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.manifests[id]
	if !ok {
		return fmt.Errorf("manifest %s: %w", id, model.ErrNotFound)
	}

	m.Status = status
	r.manifests[id] = m
	return nil
}
