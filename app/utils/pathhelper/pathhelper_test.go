package pathhelper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Some Movie", "Some Movie"},
		{`What/If: Season <1>?`, "WhatIf Season 1"},
		{"  spaced   out  ", "spaced out"},
		{"trailing dots...", "trailing dots"},
		{"", "video"},
		{`\\/<>:"|?*`, "video"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), tc.in)
	}
}

func TestSanitizeFilenameTruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("a", 300)
	assert.LessOrEqual(t, len(SanitizeFilename(long)), 180)
}

func TestEpisodeTag(t *testing.T) {
	assert.Equal(t, "S01E05", EpisodeTag(1, 5))
	assert.Equal(t, "S12E103", EpisodeTag(12, 103))
}

func TestBuildSaveName(t *testing.T) {
	assert.Equal(t, "Some Movie", BuildSaveName("Some Movie", "", 0, 0, true, 1))

	assert.Equal(t, "Crime Show S02E07 The Heist",
		BuildSaveName("Crime Show", "The Heist", 2, 7, false, 1))

	assert.Equal(t, "Crime Show S02E07 [3 Audio]",
		BuildSaveName("Crime Show", "", 2, 7, false, 3))

	// 标题里的非法字符也会被清理
	assert.Equal(t, "WhoseLine S01E01", BuildSaveName("Whose/Line?", "", 1, 1, false, 0))
}
