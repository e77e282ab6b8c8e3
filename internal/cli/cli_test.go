package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"start"},
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"seed"},
		{"worker", "run"},
		{"view"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.NotEqual(t, root, cmd, path)
	}
}

func TestViewCommand_RejectsUnknownBoard(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"view", "bar", "--once"})

	err := root.ExecuteContext(t.Context())
	assert.ErrorContains(t, err, "unknown view")
}

func TestViewCommand_TrackingNeedsNumber(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"view", "tracking", "--once"})

	err := root.ExecuteContext(t.Context())
	assert.ErrorContains(t, err, "order number")
}
