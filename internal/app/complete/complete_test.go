package complete_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/app/complete"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config complete.ServiceConfig
		expErr bool
	}{
		"valid config": {
			config: complete.ServiceConfig{Repository: &storagemock.MockRepository{}},
			expErr: false,
		},
		"missing repository": {
			config: complete.ServiceConfig{},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			svc, err := complete.NewService(test.config)
			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestService_Complete(t *testing.T) {
	session := func() *model.ExecutionSession {
		return &model.ExecutionSession{
			ID:            "s1",
			TaskID:        "t1",
			Status:        model.SessionStatusPending,
			Mode:          model.ExecutionModeSandbox,
			WebhookSecret: "the-secret",
		}
	}

	tests := map[string]struct {
		opts     complete.CompleteOptions
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"successful completion moves the task to awaiting review": {
			opts: complete.CompleteOptions{TaskID: "t1", Secret: "the-secret", Success: true, MessageCount: "12", TokenCount: "3456"},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
				m.On("CommitCompletion", mock.Anything, mock.MatchedBy(func(c storage.ExecutionCompletion) bool {
					return c.SessionID == "s1" && c.TaskID == "t1" &&
						c.TaskState == model.ExecutionStateAwaitingReview &&
						c.Update.Status != nil && *c.Update.Status == model.SessionStatusCompleted &&
						c.Update.CompletedAt != nil &&
						c.Update.MessageCount != nil && *c.Update.MessageCount == "12" &&
						c.Update.TokenCount != nil && *c.Update.TokenCount == "3456" &&
						c.Comment == nil
				})).Once().Return(nil)
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
			},
		},
		"failed completion moves the task to error": {
			opts: complete.CompleteOptions{TaskID: "t1", Secret: "the-secret", Success: false},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
				m.On("CommitCompletion", mock.Anything, mock.MatchedBy(func(c storage.ExecutionCompletion) bool {
					return c.TaskState == model.ExecutionStateError &&
						c.Update.Status != nil && *c.Update.Status == model.SessionStatusError &&
						c.Update.MessageCount == nil && c.Update.TokenCount == nil
				})).Once().Return(nil)
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
			},
		},
		"summary is recorded as an agent comment": {
			opts: complete.CompleteOptions{TaskID: "t1", Secret: "the-secret", Success: true, Summary: "Implemented the fix."},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
				m.On("CommitCompletion", mock.Anything, mock.MatchedBy(func(c storage.ExecutionCompletion) bool {
					return c.Comment != nil && c.Comment.TaskID == "t1" &&
						c.Comment.AgentName == "taskforge" && c.Comment.Content == "Implemented the fix."
				})).Once().Return(nil)
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
			},
		},
		"wrong secret is unauthorized with no side effects": {
			opts: complete.CompleteOptions{TaskID: "t1", Secret: "wrong", Success: true},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetLatestSession", mock.Anything, "t1").Once().Return(session(), nil)
			},
			expErr: model.ErrUnauthorized,
		},
		"missing session fails not found": {
			opts: complete.CompleteOptions{TaskID: "t1", Secret: "the-secret", Success: true},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetLatestSession", mock.Anything, "t1").Once().
					Return(nil, fmt.Errorf("missing: %w", model.ErrNotFound))
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			svc, err := complete.NewService(complete.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			got, err := svc.Complete(context.Background(), test.opts)
			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				repo.AssertNotCalled(t, "CommitCompletion", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "s1", got.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}
