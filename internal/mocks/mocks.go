// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// -- Driver Mock --

var (
	_ driver.Session        = (*MockSession)(nil)
	_ driver.SessionFactory = (*MockSessionFactory)(nil)
)

// MockSession implements driver.Session for testing.
type MockSession struct {
	mock.Mock
}

func NewMockSession() *MockSession {
	return &MockSession{}
}

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSession) Fill(ctx context.Context, field scenario.Locator, value string) error {
	return m.Called(ctx, field, value).Error(0)
}

func (m *MockSession) Click(ctx context.Context, target scenario.Locator) error {
	return m.Called(ctx, target).Error(0)
}

func (m *MockSession) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSession) CheckVisible(ctx context.Context, l scenario.Locator) (bool, error) {
	args := m.Called(ctx, l)
	return args.Bool(0), args.Error(1)
}

func (m *MockSession) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// -- Session Factory Mock --

// MockSessionFactory implements driver.SessionFactory for testing.
type MockSessionFactory struct {
	mock.Mock
}

func (m *MockSessionFactory) NewSession(ctx context.Context) (driver.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(driver.Session), args.Error(1)
}

func (m *MockSessionFactory) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
