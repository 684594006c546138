package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/app/task"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
)

func testService(t *testing.T, repo *storagemock.MockRepository) *task.Service {
	t.Helper()

	guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
	require.NoError(t, err)

	svc, err := task.NewService(task.ServiceConfig{
		Repository: repo,
		Guard:      guard,
	})
	require.NoError(t, err)

	return svc
}

func ownedProject() *model.Project {
	return &model.Project{ID: "p1", OwnerUserID: "user1", Name: "api"}
}

func TestService_Create(t *testing.T) {
	caller := model.User{ID: "user1"}

	tests := map[string]struct {
		opts     task.CreateOptions
		mockRepo func(m *storagemock.MockRepository)
		expType  model.TaskType
		expErr   error
	}{
		"valid task persists idle": {
			opts: task.CreateOptions{ProjectID: "p1", Title: "Fix login", Type: model.TaskTypeBug},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
				m.On("CreateTask", mock.Anything, mock.MatchedBy(func(tk model.Task) bool {
					return tk.ProjectID == "p1" && tk.ExecutionState == model.ExecutionStateIdle
				})).Once().Return(nil)
			},
			expType: model.TaskTypeBug,
		},
		"empty type defaults to other": {
			opts: task.CreateOptions{ProjectID: "p1", Title: "Investigate flakiness"},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
				m.On("CreateTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expType: model.TaskTypeOther,
		},
		"missing title is rejected": {
			opts: task.CreateOptions{ProjectID: "p1"},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
			},
			expErr: model.ErrNotValid,
		},
		"foreign project is rejected": {
			opts: task.CreateOptions{ProjectID: "p1", Title: "Fix login"},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{
					ID: "p1", OwnerUserID: "someone-else",
				}, nil)
			},
			expErr: model.ErrUnauthorized,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			svc := testService(t, repo)
			tk, err := svc.Create(context.Background(), caller, test.opts)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				repo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expType, tk.Type)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_AddComment(t *testing.T) {
	caller := model.User{ID: "user1"}

	tests := map[string]struct {
		content  string
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"comment persists with the caller as author": {
			content: "Please also check Safari.",
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
				m.On("CreateComment", mock.Anything, mock.MatchedBy(func(c model.Comment) bool {
					return c.TaskID == "t1" && c.AuthorUserID == "user1" && c.AgentName == ""
				})).Once().Return(nil)
			},
		},
		"empty content is rejected": {
			content: "",
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
			},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			svc := testService(t, repo)
			c, err := svc.AddComment(context.Background(), caller, "t1", test.content)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				repo.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "user1", c.AuthorUserID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ProjectSessions(t *testing.T) {
	caller := model.User{ID: "user1"}

	t.Run("sessions of all project tasks", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		repo.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
		repo.On("ListTasksByProject", mock.Anything, "p1").Once().Return([]model.Task{
			{ID: "t1", ProjectID: "p1"},
			{ID: "t2", ProjectID: "p1"},
		}, nil)
		repo.On("ListSessionsForTasks", mock.Anything, []string{"t1", "t2"}).Once().Return([]model.ExecutionSession{
			{ID: "s2", TaskID: "t2"},
			{ID: "s1", TaskID: "t1"},
		}, nil)

		svc := testService(t, repo)
		sessions, err := svc.ProjectSessions(context.Background(), caller, "p1")

		require.NoError(t, err)
		assert.Len(t, sessions, 2)
		repo.AssertExpectations(t)
	})

	t.Run("project without tasks yields no sessions", func(t *testing.T) {
		repo := &storagemock.MockRepository{}
		repo.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
		repo.On("ListTasksByProject", mock.Anything, "p1").Once().Return([]model.Task{}, nil)
		repo.On("ListSessionsForTasks", mock.Anything, []string{}).Once().Return([]model.ExecutionSession{}, nil)

		svc := testService(t, repo)
		sessions, err := svc.ProjectSessions(context.Background(), caller, "p1")

		require.NoError(t, err)
		assert.Empty(t, sessions)
		repo.AssertExpectations(t)
	})
}

func TestService_Delete(t *testing.T) {
	caller := model.User{ID: "user1"}

	repo := &storagemock.MockRepository{}
	repo.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", ProjectID: "p1"}, nil)
	repo.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject(), nil)
	repo.On("DeleteTask", mock.Anything, "t1").Once().Return(nil)

	svc := testService(t, repo)
	err := svc.Delete(context.Background(), caller, "t1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
