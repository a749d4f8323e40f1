package bot

import (
	"os"
	"path/filepath"
	"testing"

	"stream-porter/app/model"
	"stream-porter/app/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueStatusTextIncludesGlobalLoad(t *testing.T) {
	views := []service.UserTaskView{
		{Task: &model.Task{ID: "DL-AAAA", Status: model.TaskStatusDownloading, Request: model.DownloadRequest{Title: "Movie One"}}},
		{Task: &model.Task{ID: "DL-BBBB", Status: model.TaskStatusPending, Request: model.DownloadRequest{Title: "Movie Two"}}, Position: 1},
	}
	stats := service.QueueStats{Active: 4, Pending: 7}

	text := queueStatusText(views, stats)
	assert.Contains(t, text, "DL-AAAA")
	assert.Contains(t, text, "queued (position 1)")
	assert.Contains(t, text, "Global: 4 active / 7 queued")
}

func TestQueueStatusTextEmpty(t *testing.T) {
	text := queueStatusText(nil, service.QueueStats{Active: 2, Pending: 0})
	assert.Contains(t, text, "no active or queued tasks")
	assert.Contains(t, text, "Global: 2 active / 0 queued")
}

func TestRemoveUserCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "100.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0644))

	removed, err := removeUserCookies(path)
	require.NoError(t, err)
	assert.True(t, removed)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// 重复删除不是错误
	removed, err = removeUserCookies(path)
	require.NoError(t, err)
	assert.False(t, removed)
}
