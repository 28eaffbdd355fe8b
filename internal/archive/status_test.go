package archive

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTracker_BeginWhileBusy(t *testing.T) {
	st := NewStatusTracker(time.Minute)
	require.NoError(t, st.Begin())
	assert.ErrorIs(t, st.Begin(), ErrBusy)

	st.Zipping()
	assert.ErrorIs(t, st.Begin(), ErrBusy)
	assert.Equal(t, StatusZipping, st.Status())
}

func TestStatusTracker_ReturnsToIdle(t *testing.T) {
	for _, outcome := range []error{nil, errors.New("boom")} {
		st := NewStatusTracker(10 * time.Millisecond)
		require.NoError(t, st.Begin())
		st.Finish(outcome)

		want := StatusSuccess
		if outcome != nil {
			want = StatusError
		}
		assert.Equal(t, want, st.Status())
		assert.Eventually(t, func() bool { return st.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
	}
}

func TestStatusTracker_ImmediateReset(t *testing.T) {
	st := NewStatusTracker(0)
	require.NoError(t, st.Begin())
	st.Finish(errors.New("boom"))
	assert.Equal(t, StatusIdle, st.Status())
}

func TestStatusTracker_NewBatchCancelsPendingReset(t *testing.T) {
	st := NewStatusTracker(20 * time.Millisecond)
	require.NoError(t, st.Begin())
	st.Finish(nil)

	require.NoError(t, st.Begin())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusDownloading, st.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "zipping", StatusZipping.String())
	assert.Equal(t, "unknown", Status(42).String())
}
