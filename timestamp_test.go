package netreactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampOrdering(t *testing.T) {
	t1 := Now()
	time.Sleep(time.Millisecond)
	t2 := Now()

	require.True(t, t1.Before(t2))
	require.True(t, t2.After(t1))
	require.Greater(t, t2.Sub(t1), time.Duration(0))
}

func TestTimestampAdd(t *testing.T) {
	t1 := Now()
	t2 := t1.Add(1.5)
	require.InDelta(t, 1.5*float64(time.Second), float64(t2.Sub(t1)), float64(time.Millisecond))
}

func TestTimestampZero(t *testing.T) {
	var ts Timestamp
	require.True(t, ts.IsZero())
	require.False(t, Now().IsZero())
}
