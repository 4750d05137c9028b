package board

import (
	"context"
	"sync"

	"github.com/comandaclub/boardsync/pkg/enums/orderstatus"
)

// MockOrdersAPI is a test mock for OrdersAPI
type MockOrdersAPI struct {
	mu sync.Mutex

	GetKitchenBoardFunc          func(ctx context.Context, businessID int) ([]RawOrder, error)
	UpdateKitchenOrderStatusFunc func(ctx context.Context, orderID int, status orderstatus.Status) error

	boardCalls   int
	updateCalls  []statusCall
	boardOrders  []RawOrder
	boardFailure error
}

type statusCall struct {
	orderID int
	status  orderstatus.Status
}

func NewMockOrdersAPI() *MockOrdersAPI {
	return &MockOrdersAPI{}
}

func (m *MockOrdersAPI) GetKitchenBoard(ctx context.Context, businessID int) ([]RawOrder, error) {
	m.mu.Lock()
	m.boardCalls++
	m.mu.Unlock()
	if m.GetKitchenBoardFunc != nil {
		return m.GetKitchenBoardFunc(ctx, businessID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boardOrders, m.boardFailure
}

func (m *MockOrdersAPI) UpdateKitchenOrderStatus(ctx context.Context, orderID int, status orderstatus.Status) error {
	m.mu.Lock()
	m.updateCalls = append(m.updateCalls, statusCall{orderID: orderID, status: status})
	m.mu.Unlock()
	if m.UpdateKitchenOrderStatusFunc != nil {
		return m.UpdateKitchenOrderStatusFunc(ctx, orderID, status)
	}
	return nil
}

func (m *MockOrdersAPI) SetBoard(orders []RawOrder) {
	m.mu.Lock()
	m.boardOrders = orders
	m.mu.Unlock()
}

func (m *MockOrdersAPI) FailBoard(err error) {
	m.mu.Lock()
	m.boardFailure = err
	m.mu.Unlock()
}

func (m *MockOrdersAPI) BoardCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boardCalls
}

func (m *MockOrdersAPI) UpdateCalls() []statusCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]statusCall, len(m.updateCalls))
	copy(out, m.updateCalls)
	return out
}

// MockPersister is a test mock for Persister
type MockPersister struct {
	mu sync.Mutex

	SaveFunc func(ctx context.Context, state State) error
	LoadFunc func(ctx context.Context) (State, bool, error)

	saved []State
}

func (m *MockPersister) Save(ctx context.Context, state State) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, state)
	}
	m.mu.Lock()
	m.saved = append(m.saved, state)
	m.mu.Unlock()
	return nil
}

func (m *MockPersister) Load(ctx context.Context) (State, bool, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return State{}, false, nil
	}
	return m.saved[len(m.saved)-1], true, nil
}

func (m *MockPersister) Saved() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.saved))
	copy(out, m.saved)
	return out
}
