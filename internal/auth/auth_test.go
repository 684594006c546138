package auth_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
)

func TestStaticIdentity_CurrentUser(t *testing.T) {
	tests := map[string]struct {
		userID  string
		expUser *model.User
		expErr  error
	}{
		"configured user resolves": {
			userID:  "user1",
			expUser: &model.User{ID: "user1", Name: "user1"},
		},
		"empty user fails unauthenticated": {
			userID: "",
			expErr: model.ErrUnauthenticated,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			user, err := auth.NewStaticIdentity(test.userID).CurrentUser(context.Background())
			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expUser, user)
		})
	}
}

func TestGuard_Project(t *testing.T) {
	caller := model.User{ID: "user1"}

	tests := map[string]struct {
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"owned project resolves": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{
					ID: "p1", OwnerUserID: "user1", Name: "api",
				}, nil)
			},
		},
		"missing project fails not found": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(nil, fmt.Errorf("missing: %w", model.ErrNotFound))
			},
			expErr: model.ErrNotFound,
		},
		"foreign project fails unauthorized": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{
					ID: "p1", OwnerUserID: "someone-else", Name: "api",
				}, nil)
			},
			expErr: model.ErrUnauthorized,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
			require.NoError(t, err)

			p, err := guard.Project(context.Background(), caller, "p1")
			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "p1", p.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestGuard_ProjectForTask(t *testing.T) {
	caller := model.User{ID: "user1"}

	tests := map[string]struct {
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"task of owned project resolves": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "user1"}, nil)
			},
		},
		"missing task fails not found": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetTask", mock.Anything, "t1").Once().Return(nil, fmt.Errorf("missing: %w", model.ErrNotFound))
			},
			expErr: model.ErrNotFound,
		},
		"task of foreign project fails unauthorized": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "someone-else"}, nil)
			},
			expErr: model.ErrUnauthorized,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
			require.NoError(t, err)

			task, project, err := guard.ProjectForTask(context.Background(), caller, "t1")
			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "t1", task.ID)
				assert.Equal(t, "p1", project.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestGuard_ProjectForManifest(t *testing.T) {
	caller := model.User{ID: "user1"}

	repo := &storagemock.MockRepository{}
	repo.On("GetManifest", mock.Anything, "m1").Once().Return(&model.Manifest{ID: "m1", ProjectID: "p1"}, nil)
	repo.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "user1"}, nil)

	guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
	require.NoError(t, err)

	m, p, err := guard.ProjectForManifest(context.Background(), caller, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "p1", p.ID)
	repo.AssertExpectations(t)
}
