package service

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	no := GenerateOrderNo(now)
	require.True(t, strings.HasPrefix(no, "B"))
	require.Equal(t, strings.ToUpper(no), no)

	// The timestamp portion round-trips from base36.
	ts := no[1 : len(no)-8]
	millis, err := strconv.ParseInt(strings.ToLower(ts), 36, 64)
	require.NoError(t, err)
	require.Equal(t, now.UnixMilli(), millis)
}

func TestGenerateOrderNoDiffers(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		no := GenerateOrderNo(now)
		_, dup := seen[no]
		require.False(t, dup)
		seen[no] = struct{}{}
	}
}
