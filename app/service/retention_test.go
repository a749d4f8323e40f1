package service

import (
	"testing"
	"time"

	"stream-porter/app/config"
	"stream-porter/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictAndArchive(t *testing.T) {
	db := newTestDB(t)
	queue := NewDownloadQueue(newTestLogger(), 2, 5)
	cfg := &config.Config{}
	cfg.Download.RetentionHours = 1
	svc := NewRetentionService(queue, db, cfg, newTestLogger())

	// 一个到期的失败任务和一个新鲜的完成任务
	old := addTask(t, queue, 1, "old")
	require.NotNil(t, queue.NextAdmissible())
	queue.Finish(old.ID, model.TaskStatusFailed, "timeout")
	finished := time.Now().Add(-2 * time.Hour)
	old.FinishedAt = &finished

	fresh := addTask(t, queue, 2, "fresh")
	require.NotNil(t, queue.NextAdmissible())
	queue.Finish(fresh.ID, model.TaskStatusCompleted, "")

	svc.evictAndArchive()

	_, ok := queue.Get(old.ID)
	assert.False(t, ok)
	_, ok = queue.Get(fresh.ID)
	assert.True(t, ok)

	var archived []model.TaskArchive
	require.NoError(t, db.Find(&archived).Error)
	require.Len(t, archived, 1)
	assert.Equal(t, old.ID, archived[0].TaskID)
	assert.Equal(t, string(model.TaskStatusFailed), archived[0].Status)
	assert.Equal(t, "timeout", archived[0].Error)
}

func TestPruneArchive(t *testing.T) {
	db := newTestDB(t)
	queue := NewDownloadQueue(newTestLogger(), 2, 5)
	cfg := &config.Config{}
	svc := NewRetentionService(queue, db, cfg, newTestLogger())

	now := time.Now()
	rows := []model.TaskArchive{
		{TaskID: "DL-AAAA", UserID: 1, Status: "failed", ArchivedAt: now.Add(-8 * 24 * time.Hour)},
		{TaskID: "DL-BBBB", UserID: 1, Status: "failed", ArchivedAt: now.Add(-1 * 24 * time.Hour)},
		{TaskID: "DL-CCCC", UserID: 1, Status: "completed", ArchivedAt: now.Add(-31 * 24 * time.Hour)},
		{TaskID: "DL-DDDD", UserID: 1, Status: "completed", ArchivedAt: now.Add(-8 * 24 * time.Hour)},
	}
	require.NoError(t, db.Create(&rows).Error)

	svc.pruneArchive()

	var remaining []model.TaskArchive
	require.NoError(t, db.Order("task_id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	// 失败记录过了 7 天被清，完成记录 30 天内保留
	assert.Equal(t, "DL-BBBB", remaining[0].TaskID)
	assert.Equal(t, "DL-DDDD", remaining[1].TaskID)
}
