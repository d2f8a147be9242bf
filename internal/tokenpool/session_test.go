package tokenpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordErrorInvalidatesAtThreshold(t *testing.T) {
	s := newSession("id", "", "ua", "", "token", nil)
	require.True(t, s.Valid())

	for i := 0; i < 4; i++ {
		require.False(t, s.RecordError(5))
	}
	require.True(t, s.RecordError(5))
	require.False(t, s.Valid())
}

func TestRecordSuccessDoesNotResetErrorCount(t *testing.T) {
	s := newSession("id", "", "ua", "", "token", nil)
	s.RecordError(5)
	s.RecordError(5)
	s.RecordSuccess()
	require.True(t, s.Valid())
	s.RecordError(5)
	s.RecordError(5)
	require.True(t, s.RecordError(5))
	require.False(t, s.Valid())
}

func TestResetScanCount(t *testing.T) {
	s := newSession("id", "", "ua", "", "token", nil)
	require.Equal(t, 1, s.RecordSuccess())
	require.Equal(t, 2, s.RecordSuccess())
	s.ResetScanCount()
	require.Equal(t, 0, s.ScanCount())
}
