// File: internal/mocks/mocks.go
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// -- Structural Observer Mock --

// MockStructuralObserver mocks dom.StructuralObserver for tests that need
// to assert exactly which notifications a mutation produced.
type MockStructuralObserver struct {
	mock.Mock
}

var _ dom.StructuralObserver = (*MockStructuralObserver)(nil)

func (m *MockStructuralObserver) ChildListChanged(parent *dom.Node) {
	m.Called(parent)
}

func (m *MockStructuralObserver) AttributeChanged(el *dom.Node, name, oldValue, newValue string, present bool) {
	m.Called(el, name, oldValue, newValue, present)
}
