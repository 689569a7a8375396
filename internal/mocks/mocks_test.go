// File: internal/mocks/mocks_test.go
package mocks_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/mocks"
)

func TestMockStructuralObserver_SeesTreeMutations(t *testing.T) {
	doc := dom.NewDocument(zaptest.NewLogger(t))
	obs := &mocks.MockStructuralObserver{}
	obs.On("ChildListChanged", mock.Anything).Return()
	obs.On("AttributeChanged", mock.Anything, "id", "", "app", true).Return()
	doc.AddObserver(obs)

	div := doc.CreateElement("div")
	_, err := doc.AsNode().AppendChild(div)
	require.NoError(t, err)
	div.SetAttribute("id", "app")

	obs.AssertCalled(t, "ChildListChanged", doc.AsNode())
	obs.AssertCalled(t, "AttributeChanged", div, "id", "", "app", true)
}

func TestMockStructuralObserver_SeesShadowAttach(t *testing.T) {
	doc := dom.NewDocument(zaptest.NewLogger(t))
	host := doc.CreateElement("div")
	_, err := doc.AsNode().AppendChild(host)
	require.NoError(t, err)

	obs := &mocks.MockStructuralObserver{}
	obs.On("ChildListChanged", mock.Anything).Return()
	doc.AddObserver(obs)

	_, err = host.AttachShadow(dom.ModeOpen)
	require.NoError(t, err)

	obs.AssertCalled(t, "ChildListChanged", host)
	obs.AssertNumberOfCalls(t, "ChildListChanged", 1)
}
