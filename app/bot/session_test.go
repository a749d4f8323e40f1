package bot

import (
	"testing"

	"stream-porter/app/utils/mxplayer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := newSessionStore()

	_, ok := store.Get(100)
	assert.False(t, ok)

	store.Put(100, &wizardSession{
		State: stateChooseResolution,
		Meta:  &mxplayer.Metadata{Title: "Some Movie"},
	})

	session, ok := store.Get(100)
	require.True(t, ok)
	assert.Equal(t, stateChooseResolution, session.State)
	assert.Equal(t, "Some Movie", session.Meta.Title)

	// 不同用户互不可见
	_, ok = store.Get(200)
	assert.False(t, ok)

	store.Delete(100)
	_, ok = store.Get(100)
	assert.False(t, ok)
}

func TestSessionStoreOverwrite(t *testing.T) {
	store := newSessionStore()

	store.Put(100, &wizardSession{State: stateChooseResolution})
	store.Put(100, &wizardSession{State: stateConfirm, Resolution: "1080"})

	session, ok := store.Get(100)
	require.True(t, ok)
	assert.Equal(t, stateConfirm, session.State)
	assert.Equal(t, "1080", session.Resolution)
}
