package bot

import (
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

func TestProgressThrottleWindow(t *testing.T) {
	r := NewProgressReporter(nil, newTestLogger())
	r.states["DL-TEST"] = &progressState{phase: "download", phaseStart: time.Now()}

	// 第一次更新放行并推进时间戳
	require.NotNil(t, r.prepare("DL-TEST", "download", 3*time.Second))

	// 窗口内的更新被丢弃
	assert.Nil(t, r.prepare("DL-TEST", "download", 3*time.Second))
	assert.Nil(t, r.prepare("DL-TEST", "download", 3*time.Second))

	// 窗口过期后恢复
	r.states["DL-TEST"].lastEdit = time.Now().Add(-4 * time.Second)
	assert.NotNil(t, r.prepare("DL-TEST", "download", 3*time.Second))
}

func TestProgressThrottleRespectsMute(t *testing.T) {
	r := NewProgressReporter(nil, newTestLogger())
	r.states["DL-TEST"] = &progressState{
		phase:      "download",
		phaseStart: time.Now(),
		mutedUntil: time.Now().Add(time.Minute),
	}

	// 被限流期间一律丢弃
	assert.Nil(t, r.prepare("DL-TEST", "download", 0))

	r.states["DL-TEST"].mutedUntil = time.Now().Add(-time.Second)
	assert.NotNil(t, r.prepare("DL-TEST", "download", 0))
}

func TestProgressPhaseSwitchResetsClock(t *testing.T) {
	r := NewProgressReporter(nil, newTestLogger())
	start := time.Now().Add(-time.Hour)
	r.states["DL-TEST"] = &progressState{phase: "download", phaseStart: start}

	state := r.prepare("DL-TEST", "upload", 0)
	require.NotNil(t, state)
	assert.Equal(t, "upload", state.phase)
	assert.True(t, state.phaseStart.After(start))
}

func TestProgressUnknownTask(t *testing.T) {
	r := NewProgressReporter(nil, newTestLogger())
	assert.Nil(t, r.prepare("DL-NONE", "download", 0))
}

func TestValidTaskIDFormat(t *testing.T) {
	assert.True(t, validTaskIDFormat("DL-A3X9"))
	assert.True(t, validTaskIDFormat("DL-0000"))
	assert.False(t, validTaskIDFormat("A3X9"))
	assert.False(t, validTaskIDFormat("DL-A3X"))
	assert.False(t, validTaskIDFormat("DL-A3X99"))
	assert.False(t, validTaskIDFormat("DL-a3x9"))
	assert.False(t, validTaskIDFormat("XX-A3X9"))
}
