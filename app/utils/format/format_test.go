package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	assert.Equal(t, "512 B", Size(512))
	assert.Equal(t, "1.00 KB", Size(1024))
	assert.Equal(t, "1.50 MB", Size(1536*1024))
	assert.Equal(t, "2.00 GB", Size(2*1024*1024*1024))
}

func TestSpeed(t *testing.T) {
	assert.Equal(t, "0 B/s", Speed(0))
	assert.Equal(t, "0 B/s", Speed(-5))
	assert.Equal(t, "1.00 MB/s", Speed(1024*1024))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "45s", Duration(45*time.Second))
	assert.Equal(t, "2m5s", Duration(125*time.Second))
	assert.Equal(t, "1h1m5s", Duration(3665*time.Second))
}

func TestETA(t *testing.T) {
	assert.Equal(t, "-", ETA(0))
	assert.Equal(t, "-", ETA(-3))
	assert.Equal(t, "1m30s", ETA(90))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", Clock(0))
	assert.Equal(t, "02:05", Clock(125))
	assert.Equal(t, "01:01:05", Clock(3665))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0, 10))
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 10))
	assert.Equal(t, "██████████", ProgressBar(100, 10))
	// 越界值被夹到范围内
	assert.Equal(t, "██████████", ProgressBar(150, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-10, 10))
}
