// Package sandboxmock contains testify mocks for the sandbox interfaces.
package sandboxmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskforge/taskforge/internal/sandbox"
)

// MockProvider is a testify mock of sandbox.Provider.
type MockProvider struct {
	mock.Mock
}

var _ sandbox.Provider = (*MockProvider)(nil)

func (m *MockProvider) Spawn(ctx context.Context, spec sandbox.SpawnSpec) (*sandbox.Spawned, error) {
	args := m.Called(ctx, spec)
	var r0 *sandbox.Spawned
	if v := args.Get(0); v != nil {
		r0 = v.(*sandbox.Spawned)
	}
	return r0, args.Error(1)
}

func (m *MockProvider) Exec(ctx context.Context, handle string, command []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	args := m.Called(ctx, handle, command, opts)
	var r0 *sandbox.ExecResult
	if v := args.Get(0); v != nil {
		r0 = v.(*sandbox.ExecResult)
	}
	return r0, args.Error(1)
}

func (m *MockProvider) Destroy(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}
