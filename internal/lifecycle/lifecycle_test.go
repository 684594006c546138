package lifecycle_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/lifecycle"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/sandbox"
	"github.com/taskforge/taskforge/internal/sandbox/sandboxmock"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
)

func TestNewManager(t *testing.T) {
	tests := map[string]struct {
		config lifecycle.ManagerConfig
		expErr bool
	}{
		"valid config": {
			config: lifecycle.ManagerConfig{
				Provider:   &sandboxmock.MockProvider{},
				Repository: &storagemock.MockRepository{},
			},
			expErr: false,
		},
		"missing provider": {
			config: lifecycle.ManagerConfig{
				Repository: &storagemock.MockRepository{},
			},
			expErr: true,
		},
		"missing repository": {
			config: lifecycle.ManagerConfig{
				Provider: &sandboxmock.MockProvider{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			m, err := lifecycle.NewManager(test.config)
			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				require.NotNil(m)
			}
		})
	}
}

func TestManager_Spawn(t *testing.T) {
	spec := sandbox.SpawnSpec{
		TaskID:     "t1",
		BranchName: "task/abc",
		Purpose:    model.SandboxPurposeTask,
	}
	spawned := &sandbox.Spawned{
		Handle:     "tf-abc",
		URL:        "http://10.0.0.2:7681",
		BranchName: "task/abc",
	}

	tests := map[string]struct {
		mockProvider func(m *sandboxmock.MockProvider)
		mockRepo     func(m *storagemock.MockRepository)
		expErr       bool
	}{
		"spawn tracks a record": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Spawn", mock.Anything, spec).Once().Return(spawned, nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("CreateSandboxRecord", mock.Anything, mock.MatchedBy(func(rec model.SandboxRecord) bool {
					return rec.BranchName == "task/abc" && rec.Purpose == model.SandboxPurposeTask && rec.Handle == "tf-abc"
				})).Once().Return(nil)
			},
			expErr: false,
		},
		"provider failure spawns nothing": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Spawn", mock.Anything, spec).Once().Return(nil, fmt.Errorf("no capacity"))
			},
			mockRepo: func(m *storagemock.MockRepository) {},
			expErr:   true,
		},
		"record failure destroys the fresh sandbox": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Spawn", mock.Anything, spec).Once().Return(spawned, nil)
				m.On("Destroy", mock.Anything, "tf-abc").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("CreateSandboxRecord", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("db locked"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			provider := &sandboxmock.MockProvider{}
			repo := &storagemock.MockRepository{}
			test.mockProvider(provider)
			test.mockRepo(repo)

			manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
				Provider:   provider,
				Repository: repo,
			})
			require.NoError(t, err)

			got, err := manager.Spawn(context.Background(), spec)
			if test.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, spawned, got)
			}
			provider.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestManager_Destroy(t *testing.T) {
	rec := &model.SandboxRecord{
		ID:         "01H2QWERTYASDFGZXCVBNMLKJH",
		BranchName: "task/abc",
		Purpose:    model.SandboxPurposeTask,
		Handle:     "tf-abc",
	}

	tests := map[string]struct {
		mockProvider func(m *sandboxmock.MockProvider)
		mockRepo     func(m *storagemock.MockRepository)
		expErr       bool
	}{
		"destroy tears down and untracks": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Destroy", mock.Anything, "tf-abc").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
				m.On("DeleteSandboxRecord", mock.Anything, rec.ID).Once().Return(nil)
			},
			expErr: false,
		},
		"missing record is a no-op success": {
			mockProvider: func(m *sandboxmock.MockProvider) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().
					Return(nil, fmt.Errorf("missing: %w", model.ErrNotFound))
			},
			expErr: false,
		},
		"remote failure queues a retry and still untracks": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Destroy", mock.Anything, "tf-abc").Once().Return(fmt.Errorf("daemon unreachable"))
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
				m.On("EnqueueDestroyRetry", mock.Anything, mock.MatchedBy(func(r model.DestroyRetry) bool {
					return r.Handle == "tf-abc" && r.Attempts == 1 && r.LastError != ""
				})).Once().Return(nil)
				m.On("DeleteSandboxRecord", mock.Anything, rec.ID).Once().Return(nil)
			},
			expErr: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			provider := &sandboxmock.MockProvider{}
			repo := &storagemock.MockRepository{}
			test.mockProvider(provider)
			test.mockRepo(repo)

			manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
				Provider:   provider,
				Repository: repo,
			})
			require.NoError(t, err)

			err = manager.Destroy(context.Background(), "task/abc", model.SandboxPurposeTask)
			if test.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			provider.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestManager_Reap(t *testing.T) {
	retry1 := model.DestroyRetry{ID: "r1", Handle: "tf-one", Attempts: 1, LastError: "daemon unreachable"}
	retry2 := model.DestroyRetry{ID: "r2", Handle: "tf-two", Attempts: 2, LastError: "daemon unreachable"}

	tests := map[string]struct {
		mockProvider func(m *sandboxmock.MockProvider)
		mockRepo     func(m *storagemock.MockRepository)
		expReaped    int
		expErr       bool
	}{
		"empty queue reaps nothing": {
			mockProvider: func(m *sandboxmock.MockProvider) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("ListDestroyRetries", mock.Anything).Once().Return([]model.DestroyRetry{}, nil)
			},
			expReaped: 0,
		},
		"queue drained on success": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Destroy", mock.Anything, "tf-one").Once().Return(nil)
				m.On("Destroy", mock.Anything, "tf-two").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("ListDestroyRetries", mock.Anything).Once().Return([]model.DestroyRetry{retry1, retry2}, nil)
				m.On("DeleteDestroyRetry", mock.Anything, "r1").Once().Return(nil)
				m.On("DeleteDestroyRetry", mock.Anything, "r2").Once().Return(nil)
			},
			expReaped: 2,
		},
		"repeated failure requeues with bumped attempts": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Destroy", mock.Anything, "tf-one").Once().Return(fmt.Errorf("still unreachable"))
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("ListDestroyRetries", mock.Anything).Once().Return([]model.DestroyRetry{retry1}, nil)
				m.On("DeleteDestroyRetry", mock.Anything, "r1").Once().Return(nil)
				m.On("EnqueueDestroyRetry", mock.Anything, mock.MatchedBy(func(r model.DestroyRetry) bool {
					return r.Handle == "tf-one" && r.Attempts == 2 && r.LastError == "still unreachable"
				})).Once().Return(nil)
			},
			expReaped: 0,
		},
		"list failure fails the reap": {
			mockProvider: func(m *sandboxmock.MockProvider) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("ListDestroyRetries", mock.Anything).Once().Return(nil, fmt.Errorf("db locked"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			provider := &sandboxmock.MockProvider{}
			repo := &storagemock.MockRepository{}
			test.mockProvider(provider)
			test.mockRepo(repo)

			manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
				Provider:   provider,
				Repository: repo,
			})
			require.NoError(t, err)

			reaped, err := manager.Reap(context.Background())
			if test.expErr {
				require.Error(t, err)
				provider.AssertExpectations(t)
				repo.AssertExpectations(t)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expReaped, reaped)
			provider.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestManager_Exec(t *testing.T) {
	rec := &model.SandboxRecord{
		ID:         "01H2QWERTYASDFGZXCVBNMLKJH",
		BranchName: "task/abc",
		Purpose:    model.SandboxPurposeTask,
		Handle:     "tf-abc",
	}
	command := []string{"make", "test"}

	tests := map[string]struct {
		mockProvider func(m *sandboxmock.MockProvider)
		mockRepo     func(m *storagemock.MockRepository)
		expExitCode  int
		expErr       bool
	}{
		"exec resolves the tracked handle": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Exec", mock.Anything, "tf-abc", command, mock.Anything).Once().
					Return(&sandbox.ExecResult{ExitCode: 0}, nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
			},
			expExitCode: 0,
		},
		"failing command reports its exit code": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Exec", mock.Anything, "tf-abc", command, mock.Anything).Once().
					Return(&sandbox.ExecResult{ExitCode: 2}, nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
			},
			expExitCode: 2,
		},
		"missing record never reaches the provider": {
			mockProvider: func(m *sandboxmock.MockProvider) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().
					Return(nil, fmt.Errorf("missing: %w", model.ErrNotFound))
			},
			expErr: true,
		},
		"provider failure propagates": {
			mockProvider: func(m *sandboxmock.MockProvider) {
				m.On("Exec", mock.Anything, "tf-abc", command, mock.Anything).Once().
					Return(nil, fmt.Errorf("daemon unreachable"))
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetSandboxRecord", mock.Anything, "task/abc", model.SandboxPurposeTask).Once().Return(rec, nil)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			provider := &sandboxmock.MockProvider{}
			repo := &storagemock.MockRepository{}
			test.mockProvider(provider)
			test.mockRepo(repo)

			manager, err := lifecycle.NewManager(lifecycle.ManagerConfig{
				Provider:   provider,
				Repository: repo,
			})
			require.NoError(t, err)

			result, err := manager.Exec(context.Background(), "task/abc", model.SandboxPurposeTask, command, sandbox.ExecOpts{})
			if test.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expExitCode, result.ExitCode)
			}
			provider.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}
