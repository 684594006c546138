// Package storagemock contains testify mocks for the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
)

// MockRepository is a testify mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

var _ storage.Repository = (*MockRepository)(nil)

func (m *MockRepository) CreateProject(ctx context.Context, p model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	args := m.Called(ctx, id)
	var r0 *model.Project
	if v := args.Get(0); v != nil {
		r0 = v.(*model.Project)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ListProjectsByOwner(ctx context.Context, ownerUserID string) ([]model.Project, error) {
	args := m.Called(ctx, ownerUserID)
	var r0 []model.Project
	if v := args.Get(0); v != nil {
		r0 = v.([]model.Project)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) DeleteProject(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CreateTask(ctx context.Context, t model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	var r0 *model.Task
	if v := args.Get(0); v != nil {
		r0 = v.(*model.Task)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ListTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	args := m.Called(ctx, projectID)
	var r0 []model.Task
	if v := args.Get(0); v != nil {
		r0 = v.([]model.Task)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ClaimTaskExecution(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockRepository) SetTaskExecutionState(ctx context.Context, taskID string, state model.ExecutionState) error {
	args := m.Called(ctx, taskID, state)
	return args.Error(0)
}

func (m *MockRepository) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CreateComment(ctx context.Context, c model.Comment) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockRepository) ListCommentsByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	args := m.Called(ctx, taskID)
	var r0 []model.Comment
	if v := args.Get(0); v != nil {
		r0 = v.([]model.Comment)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) CreateSession(ctx context.Context, s model.ExecutionSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) GetLatestSession(ctx context.Context, taskID string) (*model.ExecutionSession, error) {
	args := m.Called(ctx, taskID)
	var r0 *model.ExecutionSession
	if v := args.Get(0); v != nil {
		r0 = v.(*model.ExecutionSession)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ListSessionsForTasks(ctx context.Context, taskIDs []string) ([]model.ExecutionSession, error) {
	args := m.Called(ctx, taskIDs)
	var r0 []model.ExecutionSession
	if v := args.Get(0); v != nil {
		r0 = v.([]model.ExecutionSession)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) UpdateSession(ctx context.Context, id string, u storage.SessionUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

func (m *MockRepository) CommitExecutionStart(ctx context.Context, start storage.ExecutionStart) error {
	args := m.Called(ctx, start)
	return args.Error(0)
}

func (m *MockRepository) CommitCompletion(ctx context.Context, completion storage.ExecutionCompletion) error {
	args := m.Called(ctx, completion)
	return args.Error(0)
}

func (m *MockRepository) CreateSandboxRecord(ctx context.Context, rec model.SandboxRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) GetSandboxRecord(ctx context.Context, branch string, purpose model.SandboxPurpose) (*model.SandboxRecord, error) {
	args := m.Called(ctx, branch, purpose)
	var r0 *model.SandboxRecord
	if v := args.Get(0); v != nil {
		r0 = v.(*model.SandboxRecord)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) DeleteSandboxRecord(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) EnqueueDestroyRetry(ctx context.Context, retry model.DestroyRetry) error {
	args := m.Called(ctx, retry)
	return args.Error(0)
}

func (m *MockRepository) ListDestroyRetries(ctx context.Context) ([]model.DestroyRetry, error) {
	args := m.Called(ctx)
	var r0 []model.DestroyRetry
	if v := args.Get(0); v != nil {
		r0 = v.([]model.DestroyRetry)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) DeleteDestroyRetry(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CreateManifest(ctx context.Context, manifest model.Manifest) error {
	args := m.Called(ctx, manifest)
	return args.Error(0)
}

func (m *MockRepository) GetManifest(ctx context.Context, id string) (*model.Manifest, error) {
	args := m.Called(ctx, id)
	var r0 *model.Manifest
	if v := args.Get(0); v != nil {
		r0 = v.(*model.Manifest)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ListActiveManifests(ctx context.Context, projectID string) ([]model.Manifest, error) {
	args := m.Called(ctx, projectID)
	var r0 []model.Manifest
	if v := args.Get(0); v != nil {
		r0 = v.([]model.Manifest)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) UpdateManifestStatus(ctx context.Context, id string, status model.ManifestStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}
