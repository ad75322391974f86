package mocks

import (
	"context"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockCycleRepository is a mock implementation of persistence.CycleRepository interface.
type MockCycleRepository struct {
	mock.Mock
}

func (m *MockCycleRepository) GetByID(ctx context.Context, id string) (*models.Cycle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Cycle), args.Error(1)
}

func (m *MockCycleRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Cycle, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Cycle), args.Error(1)
}

func (m *MockCycleRepository) Insert(ctx context.Context, cycle *models.Cycle) error {
	args := m.Called(ctx, cycle)

	return args.Error(0)
}

func (m *MockCycleRepository) Update(ctx context.Context, cycle *models.Cycle, expectedVersion int) error {
	args := m.Called(ctx, cycle, expectedVersion)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo *MockWorkflowRepository
	cycleRepo    *MockCycleRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo: &MockWorkflowRepository{},
		cycleRepo:    &MockCycleRepository{},
	}
}

// GetMockWorkflowRepository returns the underlying mock workflow repository for setting up expectations.
func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

// GetMockCycleRepository returns the underlying mock cycle repository for setting up expectations.
func (m *MockPersistence) GetMockCycleRepository() *MockCycleRepository {
	return m.cycleRepo
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) Cycles() persistence.CycleRepository {
	return m.cycleRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
