package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockTransferStarter is a mock implementation of TransferStarter for testing.
// Started transfers stay running until Complete or Fail is called.
type MockTransferStarter struct {
	mu        sync.Mutex
	transfers map[string]*TransferStatus
	inputs    map[string]TransferInput
	order     []string
	startErr  error
	statusErr error
}

// NewMockTransferStarter creates a new MockTransferStarter.
func NewMockTransferStarter() *MockTransferStarter {
	return &MockTransferStarter{
		transfers: make(map[string]*TransferStatus),
		inputs:    make(map[string]TransferInput),
	}
}

// StartTransfer records the transfer with a sequential id.
func (m *MockTransferStarter) StartTransfer(ctx context.Context, input TransferInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}

	id := fmt.Sprintf("%s%d", TransferIDPrefix, len(m.order)+1)
	m.transfers[id] = &TransferStatus{TransferID: id, Status: StatusRunning}
	m.inputs[id] = input
	m.order = append(m.order, id)
	return id, nil
}

// TransferStatus returns a copy of the recorded status.
func (m *MockTransferStarter) TransferStatus(ctx context.Context, id string) (*TransferStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return nil, m.statusErr
	}
	s, ok := m.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	out := *s
	return &out, nil
}

// Complete marks a transfer completed with txid.
func (m *MockTransferStarter) Complete(id, txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.transfers[id]; ok {
		s.Status = StatusCompleted
		s.TxID = txid
	}
}

// Fail marks a transfer failed with msg.
func (m *MockTransferStarter) Fail(id, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.transfers[id]; ok {
		s.Status = StatusFailed
		s.Error = msg
	}
}

// Input returns the input a transfer was started with.
func (m *MockTransferStarter) Input(id string) (TransferInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inputs[id]
	return in, ok
}

// StartedCount returns the number of started transfers.
func (m *MockTransferStarter) StartedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// SetStartError makes StartTransfer return an error.
func (m *MockTransferStarter) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStatusError makes TransferStatus return an error.
func (m *MockTransferStarter) SetStatusError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusErr = err
}
