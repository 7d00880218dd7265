package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_String(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "started", Started.String())
	assert.NotEqual(t, Stopped, Starting)
	assert.NotEqual(t, Starting, Started)
}

func TestParseParticipantState(t *testing.T) {
	for _, s := range []string{"idle", "ready", "playing"} {
		st, err := ParseParticipantState(s)
		require.NoError(t, err)
		assert.Equal(t, ParticipantState(s), st)
	}
	_, err := ParseParticipantState("sleeping")
	assert.Error(t, err)
}

func TestRequestable(t *testing.T) {
	assert.True(t, Requestable(Stopped, Ready))
	assert.True(t, Requestable(Stopped, Idle))
	assert.True(t, Requestable(Started, Idle))
	assert.False(t, Requestable(Started, Ready))
	assert.False(t, Requestable(Stopped, Playing))
	assert.False(t, Requestable(Started, Playing))
}

func TestDocumentReaders(t *testing.T) {
	assert.Equal(t, Started, AsLifecycle(Started))
	assert.Equal(t, Started, AsLifecycle(2))
	assert.Equal(t, Started, AsLifecycle(float64(2)))
	assert.Equal(t, Stopped, AsLifecycle(nil))

	assert.Equal(t, Ready, AsParticipantState("ready"))
	assert.Equal(t, Ready, AsParticipantState(Ready))
	assert.Equal(t, ParticipantState(""), AsParticipantState(3))

	assert.Equal(t, 2, AsIndex(2))
	assert.Equal(t, 2, AsIndex(float64(2)))
	assert.Equal(t, 0, AsIndex(nil))
}
