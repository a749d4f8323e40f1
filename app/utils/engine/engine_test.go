package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stream-porter/app/config"
	"stream-porter/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
}

func newTestEngine() *Engine {
	return New(config.DownloadConfig{
		BinaryPath:     "N_m3u8DL-RE",
		ThreadCount:    16,
		RetryCount:     5,
		TimeoutSeconds: 1800,
	}, newTestLogger())
}

func TestBuildArgs(t *testing.T) {
	e := newTestEngine()
	args := e.buildArgs(Request{
		ManifestURL:  "https://example.com/master.m3u8",
		SaveDir:      "/tmp/DL-A3X9",
		SaveName:     "Some Movie",
		OutputFormat: "mp4",
		Resolution:   "1080",
		CookieHeader: "a=1; b=2",
		Origin:       "https://www.mxplayer.in",
		Referer:      "https://www.mxplayer.in/",
	})

	joined := strings.Join(args, " ")
	assert.Equal(t, "https://example.com/master.m3u8", args[0])
	assert.Contains(t, joined, "--save-dir /tmp/DL-A3X9")
	assert.Contains(t, joined, "--save-name Some Movie")
	assert.Contains(t, joined, "--thread-count 16")
	assert.Contains(t, joined, "--download-retry-count 5")
	assert.Contains(t, joined, "-M format=mp4:muxer=ffmpeg")
	assert.Contains(t, joined, "-sv res=1080*")
	assert.Contains(t, joined, "User-Agent: ")
	assert.Contains(t, joined, "Cookie: a=1; b=2")
	assert.Contains(t, joined, "Origin: https://www.mxplayer.in")
}

func TestBuildArgsBestResolutionSkipsFilter(t *testing.T) {
	e := newTestEngine()

	for _, res := range []string{"", "best"} {
		args := e.buildArgs(Request{ManifestURL: "u", Resolution: res, OutputFormat: "mkv"})
		assert.NotContains(t, strings.Join(args, " "), "-sv")
	}
}

func TestBuildArgsOmitsEmptyHeaders(t *testing.T) {
	e := newTestEngine()
	args := e.buildArgs(Request{ManifestURL: "u", OutputFormat: "mp4"})

	joined := strings.Join(args, " ")
	assert.NotContains(t, joined, "Cookie:")
	assert.NotContains(t, joined, "Origin:")
	assert.Contains(t, joined, "User-Agent:")
}

func TestLocateOutputPrefersExpectedPath(t *testing.T) {
	e := newTestEngine()
	dir := t.TempDir()
	expected := filepath.Join(dir, "movie.mp4")
	require.NoError(t, os.WriteFile(expected, []byte("data"), 0644))

	path, err := e.locateOutput(Request{SaveDir: dir, SaveName: "movie", OutputFormat: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, expected, path)
}

func TestLocateOutputFallsBackToNewestVideo(t *testing.T) {
	e := newTestEngine()
	dir := t.TempDir()

	// 混流后扩展名和预期不一致
	older := filepath.Join(dir, "movie.ts")
	newer := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(older, []byte("data"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("data"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	// 非视频文件不参与回退
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.log"), []byte("x"), 0644))

	path, err := e.locateOutput(Request{SaveDir: dir, SaveName: "movie", OutputFormat: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, newer, path)
}

func TestLocateOutputEmptyDir(t *testing.T) {
	e := newTestEngine()

	_, err := e.locateOutput(Request{SaveDir: t.TempDir(), SaveName: "movie", OutputFormat: "mp4"})
	assert.Error(t, err)
}

func TestPercentPattern(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"Vid 1920x1080 | 2043 Kbps ------ 37.5%", "37.5"},
		{"Aud 128 Kbps ------ 100%", "100"},
		{"merging... 5 % done", "5"},
	}
	for _, tc := range cases {
		m := percentPattern.FindStringSubmatch(tc.line)
		require.NotNil(t, m, tc.line)
		assert.Equal(t, tc.want, m[1])
	}

	assert.Nil(t, percentPattern.FindStringSubmatch("no progress here"))
}
