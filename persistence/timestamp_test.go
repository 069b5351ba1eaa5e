// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC)
	for _, v := range []string{
		"2025-09-29T18:56:00Z",
		"2025-09-29T18:56:00+00:00",
		"2025-09-29T20:56:00+02:00",
		"2025-09-29T18:56:00",
		"2025-09-29 18:56:00",
		"2025-09-29T18:56",
		"2025-09-29T18:56Z",
	} {
		got, err := ParseTimestamp(v)
		require.NoError(t, err, v)
		assert.True(t, want.Equal(got), v)
		assert.Equal(t, time.UTC, got.Location(), v)
	}

	withFraction, err := ParseTimestamp("2025-09-29T18:56:00.123456+00:00")
	require.NoError(t, err)
	assert.Equal(t, 123456000, withFraction.Nanosecond())

	for _, v := range []string{"", "tomorrow", "29/09/2025"} {
		_, err := ParseTimestamp(v)
		assert.Error(t, err, v)
	}
}

func TestFormatTimestampSortsLikeTime(t *testing.T) {
	earlier := time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC)
	later := earlier.Add(500 * time.Millisecond)
	assert.Equal(t, "2025-09-29T18:56:00.000000+00:00", FormatTimestamp(earlier))
	assert.Less(t, FormatTimestamp(earlier), FormatTimestamp(later))

	parsed, err := ParseTimestamp(FormatTimestamp(later))
	require.NoError(t, err)
	assert.True(t, later.Equal(parsed))
}
