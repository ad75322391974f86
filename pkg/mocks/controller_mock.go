package mocks

import (
	"context"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockCycleStore is a mock implementation of controller.CycleStore interface.
type MockCycleStore struct {
	mock.Mock
}

func (m *MockCycleStore) Create(ctx context.Context, cycle *models.Cycle) (*models.Cycle, error) {
	args := m.Called(ctx, cycle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cycle), args.Error(1)
}

func (m *MockCycleStore) Refresh(ctx context.Context, cycle *models.Cycle) error {
	args := m.Called(ctx, cycle)

	return args.Error(0)
}

func (m *MockCycleStore) Save(ctx context.Context, cycle *models.Cycle) error {
	args := m.Called(ctx, cycle)

	return args.Error(0)
}

// MockWorkflowStore is a mock implementation of controller.WorkflowStore interface.
type MockWorkflowStore struct {
	mock.Mock
}

func (m *MockWorkflowStore) Refresh(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

// MockConfirmer is a mock implementation of confirm.Confirmer interface.
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, opts confirm.Options) (bool, error) {
	args := m.Called(ctx, opts)

	return args.Bool(0), args.Error(1)
}

// MockGuard is a mock implementation of busy.Guard interface.
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) TryAcquire(ctx context.Context, key string) (busy.Lease, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(busy.Lease), args.Error(1)
}

// MockLease is a mock implementation of busy.Lease interface.
type MockLease struct {
	mock.Mock
}

// NewMockLease returns a lease for key whose Release is not yet expected.
func NewMockLease(key string) *MockLease {
	lease := &MockLease{}
	lease.On("Key").Return(key).Maybe()

	return lease
}

func (m *MockLease) Key() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockLease) Release(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
