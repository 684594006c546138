package execute_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/app/execute"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
	"github.com/taskforge/taskforge/internal/sandbox/fake"
	"github.com/taskforge/taskforge/internal/sandbox/sandboxmock"
	"github.com/taskforge/taskforge/internal/storage"
	"github.com/taskforge/taskforge/internal/storage/memory"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
	"github.com/taskforge/taskforge/internal/vault"
)

const vaultKey = "test-key-material"

func testService(t *testing.T, repo *storagemock.MockRepository, provider *sandboxmock.MockProvider) *execute.Service {
	t.Helper()

	guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
	require.NoError(t, err)

	v, err := vault.NewVault(vault.VaultConfig{Key: vaultKey})
	require.NoError(t, err)

	manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
		Provider:   provider,
		Repository: repo,
	})
	require.NoError(t, err)

	svc, err := execute.NewService(execute.ServiceConfig{
		Repository: repo,
		Guard:      guard,
		Vault:      v,
		Lifecycle:  manager,
	})
	require.NoError(t, err)

	return svc
}

func encryptToken(t *testing.T, token string) string {
	t.Helper()
	v, err := vault.NewVault(vault.VaultConfig{Key: vaultKey})
	require.NoError(t, err)
	blob, err := v.Encrypt(token)
	require.NoError(t, err)
	return blob
}

func TestService_Execute(t *testing.T) {
	caller := model.User{ID: "user1"}
	task := &model.Task{
		ID:             "t1",
		ProjectID:      "p1",
		Title:          "Fix login",
		Type:           model.TaskTypeBug,
		ExecutionState: model.ExecutionStateIdle,
	}
	spawned := &sandbox.Spawned{
		Handle:        "tf-abc",
		URL:           "http://10.0.0.2:7681",
		Password:      "sandbox-password",
		WebhookSecret: "webhook-secret",
		BranchName:    "task/abc",
	}

	project := func(t *testing.T) *model.Project {
		return &model.Project{
			ID:                 "p1",
			OwnerUserID:        "user1",
			Name:               "api",
			RepoURL:            "https://example.com/api.git",
			EncryptedRepoToken: encryptToken(t, "ghp_token"),
		}
	}

	t.Run("happy path starts a pending sandbox session", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		provider := &sandboxmock.MockProvider{}

		repo.On("GetTask", mock.Anything, "t1").Once().Return(task, nil)
		repo.On("GetProject", mock.Anything, "p1").Once().Return(project(t), nil)
		repo.On("ClaimTaskExecution", mock.Anything, "t1").Once().Return(nil)
		repo.On("ListCommentsByTask", mock.Anything, "t1").Once().Return([]model.Comment{}, nil)
		provider.On("Spawn", mock.Anything, mock.MatchedBy(func(spec sandbox.SpawnSpec) bool {
			return spec.TaskID == "t1" &&
				spec.Purpose == model.SandboxPurposeTask &&
				spec.RepoToken == "ghp_token" &&
				spec.AgentModel == "anthropic/claude-sonnet-4-5"
		})).Once().Return(spawned, nil)
		repo.On("CreateSandboxRecord", mock.Anything, mock.Anything).Once().Return(nil)
		repo.On("CommitExecutionStart", mock.Anything, mock.MatchedBy(func(start storage.ExecutionStart) bool {
			s := start.Session
			return s.TaskID == "t1" &&
				s.Status == model.SessionStatusPending &&
				s.Mode == model.ExecutionModeSandbox &&
				s.BranchName == "task/abc" &&
				s.WebhookSecret == "webhook-secret" &&
				s.SandboxPassword != "sandbox-password" &&
				start.Comment.AgentName == "taskforge"
		})).Once().Return(nil)

		svc := testService(t, repo, provider)
		result, err := svc.Execute(context.Background(), caller, "t1")

		require.NoError(t, err)
		assert.Equal(t, "sandbox-password", result.SandboxPassword)
		assert.Equal(t, model.SessionStatusPending, result.Session.Status)
		assert.NotEmpty(t, result.Session.CorrelationID)
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("concurrent start is rejected before any side effect", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		provider := &sandboxmock.MockProvider{}

		repo.On("GetTask", mock.Anything, "t1").Once().Return(task, nil)
		repo.On("GetProject", mock.Anything, "p1").Once().Return(project(t), nil)
		repo.On("ClaimTaskExecution", mock.Anything, "t1").Once().
			Return(fmt.Errorf("claimed: %w", model.ErrAlreadyExists))

		svc := testService(t, repo, provider)
		_, err := svc.Execute(context.Background(), caller, "t1")

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrNotValid)
		repo.AssertNotCalled(t, "CommitExecutionStart", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "SetTaskExecutionState", mock.Anything, mock.Anything, mock.Anything)
		provider.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("non-owner is rejected before the claim", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		provider := &sandboxmock.MockProvider{}

		repo.On("GetTask", mock.Anything, "t1").Once().Return(task, nil)
		p := project(t)
		p.OwnerUserID = "someone-else"
		repo.On("GetProject", mock.Anything, "p1").Once().Return(p, nil)

		svc := testService(t, repo, provider)
		_, err := svc.Execute(context.Background(), caller, "t1")

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrUnauthorized)
		repo.AssertNotCalled(t, "ClaimTaskExecution", mock.Anything, mock.Anything)
		provider.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("undecryptable credential rolls the task into error", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		provider := &sandboxmock.MockProvider{}

		p := project(t)
		p.EncryptedRepoToken = "not-a-vault-blob"
		repo.On("GetTask", mock.Anything, "t1").Once().Return(task, nil)
		repo.On("GetProject", mock.Anything, "p1").Once().Return(p, nil)
		repo.On("ClaimTaskExecution", mock.Anything, "t1").Once().Return(nil)
		repo.On("ListCommentsByTask", mock.Anything, "t1").Once().Return([]model.Comment{}, nil)
		repo.On("SetTaskExecutionState", mock.Anything, "t1", model.ExecutionStateError).Once().Return(nil)

		svc := testService(t, repo, provider)
		_, err := svc.Execute(context.Background(), caller, "t1")

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrDecryption)
		provider.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("commit failure destroys the spawned sandbox and errors the task", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		provider := &sandboxmock.MockProvider{}

		rec := &model.SandboxRecord{ID: "rec1", BranchName: "task/abc", Purpose: model.SandboxPurposeTask, Handle: "tf-abc"}

		repo.On("GetTask", mock.Anything, "t1").Once().Return(task, nil)
		repo.On("GetProject", mock.Anything, "p1").Once().Return(project(t), nil)
		repo.On("ClaimTaskExecution", mock.Anything, "t1").Once().Return(nil)
		repo.On("ListCommentsByTask", mock.Anything, "t1").Once().Return([]model.Comment{}, nil)
		provider.On("Spawn", mock.Anything, mock.Anything).Once().Return(spawned, nil)
		repo.On("CreateSandboxRecord", mock.Anything, mock.Anything).Once().Return(nil)
		repo.On("CommitExecutionStart", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("db locked"))

		// Compensation: the tracked sandbox is destroyed, then the task errors.
		repo.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
		provider.On("Destroy", mock.Anything, "tf-abc").Once().Return(nil)
		repo.On("DeleteSandboxRecord", mock.Anything, "rec1").Once().Return(nil)
		repo.On("SetTaskExecutionState", mock.Anything, "t1", model.ExecutionStateError).Once().Return(nil)

		svc := testService(t, repo, provider)
		_, err := svc.Execute(context.Background(), caller, "t1")

		require.Error(t, err)
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})
}

func TestServiceExecuteEndToEnd(t *testing.T) {
	ctx := context.Background()
	caller := model.User{ID: "user1"}
	createdAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	newService := func(t *testing.T) (*execute.Service, *memory.Repository, *fake.Provider) {
		t.Helper()

		repo, err := memory.NewRepository(memory.RepositoryConfig{})
		require.NoError(t, err)
		provider, err := fake.NewProvider(fake.ProviderConfig{})
		require.NoError(t, err)

		guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
		require.NoError(t, err)
		v, err := vault.NewVault(vault.VaultConfig{Key: vaultKey})
		require.NoError(t, err)
		manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
			Provider:   provider,
			Repository: repo,
		})
		require.NoError(t, err)

		svc, err := execute.NewService(execute.ServiceConfig{
			Repository: repo,
			Guard:      guard,
			Vault:      v,
			Lifecycle:  manager,
		})
		require.NoError(t, err)

		return svc, repo, provider
	}

	t.Run("Owner execution should spawn, persist the session and audit the task", func(t *testing.T) {
		svc, repo, provider := newService(t)

		require.NoError(t, repo.CreateProject(ctx, model.Project{
			ID:                 "p1",
			OwnerUserID:        "user1",
			Name:               "backend-api",
			RepoURL:            "https://example.com/repo.git",
			EncryptedRepoToken: encryptToken(t, "ghp_token"),
			CreatedAt:          createdAt,
		}))
		require.NoError(t, repo.CreateTask(ctx, model.Task{
			ID:             "t1",
			ProjectID:      "p1",
			Title:          "Fix login",
			Type:           model.TaskTypeBug,
			ExecutionState: model.ExecutionStateIdle,
			CreatedAt:      createdAt,
		}))

		result, err := svc.Execute(ctx, caller, "t1")
		require.NoError(t, err)

		// The sandbox received the decrypted credential and the resolved model.
		specs := provider.SpawnedSpecs()
		require.Len(t, specs, 1)
		assert.Equal(t, "ghp_token", specs[0].RepoToken)
		assert.Equal(t, "anthropic/claude-sonnet-4-5", specs[0].AgentModel)

		// Session ledger, task claim, branch and audit comment are persisted.
		session, err := repo.GetLatestSession(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, result.Session.ID, session.ID)
		assert.Equal(t, model.SessionStatusPending, session.Status)
		assert.NotEqual(t, result.SandboxPassword, session.SandboxPassword)

		task, err := repo.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, model.ExecutionStateInProgress, task.ExecutionState)
		assert.Equal(t, session.BranchName, task.BranchName)

		comments, err := repo.ListCommentsByTask(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, "taskforge", comments[0].AgentName)

		// The sandbox is tracked for a later destroy.
		_, err = repo.GetSandboxRecord(ctx, session.BranchName, model.SandboxPurposeTask)
		assert.NoError(t, err)
	})

	t.Run("Non owner execution should be rejected without side effects", func(t *testing.T) {
		svc, repo, provider := newService(t)

		require.NoError(t, repo.CreateProject(ctx, model.Project{
			ID:                 "p1",
			OwnerUserID:        "someone-else",
			Name:               "backend-api",
			RepoURL:            "https://example.com/repo.git",
			EncryptedRepoToken: encryptToken(t, "ghp_token"),
			CreatedAt:          createdAt,
		}))
		require.NoError(t, repo.CreateTask(ctx, model.Task{
			ID:             "t1",
			ProjectID:      "p1",
			Title:          "Fix login",
			Type:           model.TaskTypeBug,
			ExecutionState: model.ExecutionStateIdle,
			CreatedAt:      createdAt,
		}))

		_, err := svc.Execute(ctx, caller, "t1")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrUnauthorized)

		assert.Empty(t, provider.SpawnedSpecs())
		task, err := repo.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, model.ExecutionStateIdle, task.ExecutionState)
		_, err = repo.GetLatestSession(ctx, "t1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
