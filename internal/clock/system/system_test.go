package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowIsUTCMicroseconds(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	got := New().Now()

	require.Equal(t, time.UTC, got.Location())
	require.Zero(t, got.Nanosecond()%int(time.Microsecond))
	require.WithinDuration(t, before.Add(time.Second), got, 2*time.Second)
}
