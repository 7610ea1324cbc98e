// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/ariadriver/api/schemas"
)

// -- Element Mock --

// MockElement is a trivial element handle with a fixed ID.
type MockElement string

func (e MockElement) ID() string { return string(e) }

// -- Backend Mock --

// MockBackend mocks the schemas.SessionBackend interface.
type MockBackend struct {
	mock.Mock
}

var _ schemas.SessionBackend = (*MockBackend)(nil)

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// ID is not recorded as a call.
func (m *MockBackend) ID() string { return "mock-session" }

func (m *MockBackend) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBackend) QueryAll(ctx context.Context, selector string) ([]schemas.Element, error) {
	args := m.Called(ctx, selector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Element), args.Error(1)
}

func (m *MockBackend) Attribute(ctx context.Context, el schemas.Element, name string) (string, bool, error) {
	args := m.Called(ctx, el, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockBackend) Focus(ctx context.Context, el schemas.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBackend) IsActive(ctx context.Context, el schemas.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) PressKey(ctx context.Context, el schemas.Element, key string) error {
	return m.Called(ctx, el, key).Error(0)
}

func (m *MockBackend) CountVisible(ctx context.Context, selector string) (int, error) {
	args := m.Called(ctx, selector)
	return args.Int(0), args.Error(1)
}

func (m *MockBackend) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
