package manifest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/app/manifest"
	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/model"
	"github.com/taskforge/taskforge/internal/storage/storagemock"
)

func testService(t *testing.T, repo *storagemock.MockRepository) *manifest.Service {
	t.Helper()

	guard, err := auth.NewGuard(auth.GuardConfig{Repository: repo})
	require.NoError(t, err)

	svc, err := manifest.NewService(manifest.ServiceConfig{
		Repository: repo,
		Guard:      guard,
	})
	require.NoError(t, err)

	return svc
}

func TestService_Create(t *testing.T) {
	caller := model.User{ID: "user1"}
	ownedProject := &model.Project{ID: "p1", OwnerUserID: "user1", Name: "api"}

	tests := map[string]struct {
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"no active manifest creates a pending one": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject, nil)
				m.On("ListActiveManifests", mock.Anything, "p1").Once().Return([]model.Manifest{}, nil)
				m.On("CreateManifest", mock.Anything, mock.MatchedBy(func(mf model.Manifest) bool {
					return mf.ProjectID == "p1" && mf.Status == model.ManifestStatusPending
				})).Once().Return(nil)
			},
		},
		"active manifest rejects the create": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject, nil)
				m.On("ListActiveManifests", mock.Anything, "p1").Once().Return([]model.Manifest{
					{ID: "m1", ProjectID: "p1", Status: model.ManifestStatusRunning},
				}, nil)
			},
			expErr: model.ErrAlreadyExists,
		},
		"foreign project rejects the create": {
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
			m, err := svc.Create(context.Background(), caller, "p1")

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				repo.AssertNotCalled(t, "CreateManifest", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, model.ManifestStatusPending, m.Status)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_GetActive(t *testing.T) {
	caller := model.User{ID: "user1"}
	ownedProject := &model.Project{ID: "p1", OwnerUserID: "user1", Name: "api"}

	tests := map[string]struct {
		mockRepo func(m *storagemock.MockRepository)
		expID    string
		expErr   error
	}{
		"single active manifest is returned": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject, nil)
				m.On("ListActiveManifests", mock.Anything, "p1").Once().Return([]model.Manifest{
					{ID: "m1", ProjectID: "p1", Status: model.ManifestStatusRunning},
				}, nil)
			},
			expID: "m1",
		},
		"none is not found": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject, nil)
				m.On("ListActiveManifests", mock.Anything, "p1").Once().Return([]model.Manifest{}, nil)
			},
			expErr: model.ErrNotFound,
		},
		"duplicates answer with the first by stable order": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetProject", mock.Anything, "p1").Once().Return(ownedProject, nil)
				m.On("ListActiveManifests", mock.Anything, "p1").Once().Return([]model.Manifest{
					{ID: "m1", ProjectID: "p1", Status: model.ManifestStatusRunning},
					{ID: "m2", ProjectID: "p1", Status: model.ManifestStatusPending},
				}, nil)
			},
			expID: "m1",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			svc := testService(t, repo)
			m, err := svc.GetActive(context.Background(), caller, "p1")

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expID, m.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_UpdateStatus(t *testing.T) {
	caller := model.User{ID: "user1"}

	tests := map[string]struct {
		status   model.ManifestStatus
		mockRepo func(m *storagemock.MockRepository)
		expErr   error
	}{
		"valid transition persists": {
			status: model.ManifestStatusRunning,
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetManifest", mock.Anything, "m1").Once().Return(&model.Manifest{ID: "m1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "user1"}, nil)
				m.On("UpdateManifestStatus", mock.Anything, "m1", model.ManifestStatusRunning).Once().Return(nil)
			},
		},
		"unknown status is rejected": {
			status: "paused",
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("GetManifest", mock.Anything, "m1").Once().Return(&model.Manifest{ID: "m1", ProjectID: "p1"}, nil)
				m.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "user1"}, nil)
			},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRepository{}
			test.mockRepo(repo)

			svc := testService(t, repo)
			err := svc.UpdateStatus(context.Background(), caller, "m1", test.status)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				repo.AssertNotCalled(t, "UpdateManifestStatus", mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	caller := model.User{ID: "user1"}

	repo := &storagemock.MockRepository{}
	repo.On("GetManifest", mock.Anything, "m1").Once().Return(&model.Manifest{ID: "m1", ProjectID: "p1"}, nil)
	repo.On("GetProject", mock.Anything, "p1").Once().Return(&model.Project{ID: "p1", OwnerUserID: "user1"}, nil)
	repo.On("UpdateManifestStatus", mock.Anything, "m1", model.ManifestStatusCancelled).Once().Return(nil)

	svc := testService(t, repo)
	err := svc.Cancel(context.Background(), caller, "m1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
