package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SortableWithinMillisecond(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(ids))
	for _, s := range ids {
		require.True(t, Valid(s))
		ts, err := Time(s)
		require.NoError(t, err)
		assert.True(t, ts.Equal(fixed))
	}
}

func TestTime_Invalid(t *testing.T) {
	_, err := Time("not-a-ulid")
	require.Error(t, err)
	assert.False(t, Valid(""))
}
