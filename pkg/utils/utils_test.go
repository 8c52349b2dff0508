package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "GOOG", NormalizeLabel("  goog "))
	assert.Equal(t, "2025_Q3", NormalizeLabel("2025_q3\n"))
	assert.Equal(t, "", NormalizeLabel("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3, "..."))
	assert.Equal(t, "ab...", Truncate("abc", 2, "..."))
	assert.Equal(t, "éé...", Truncate("ééé", 2, "..."))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2025-10-28")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.October, d.Month())
	assert.Equal(t, "2025-10-28", FormatDate(d))

	_, err = ParseDate("28/10/2025")
	assert.Error(t, err)

	assert.Equal(t, "", FormatDate(nil))
}

func TestGoSafeRecovers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	GoSafe(func() {
		defer wg.Done()
		panic("boom")
	})
	ran := false
	GoSafe(func() {
		defer wg.Done()
		ran = true
	})
	wg.Wait()
	assert.True(t, ran)
}
