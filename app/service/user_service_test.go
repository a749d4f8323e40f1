package service

import (
	"path/filepath"
	"testing"

	"stream-porter/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.UserSettings{},
		&model.BannedUser{},
		&model.TaskArchive{},
	))
	return db
}

func TestGetOrCreateSettingsDefaults(t *testing.T) {
	users := NewUserService(newTestDB(t), newTestLogger())

	settings, err := users.GetOrCreateSettings(100, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, model.OutputFormatMP4, settings.OutputFormat)
	assert.Equal(t, model.UploadModeVideo, settings.UploadMode)
	assert.Equal(t, "alice", settings.Username)

	// 再次获取返回同一条记录
	again, err := users.GetOrCreateSettings(100, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, settings.ID, again.ID)

	count, err := users.UserCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpdateSettingsValidation(t *testing.T) {
	users := NewUserService(newTestDB(t), newTestLogger())
	_, err := users.GetOrCreateSettings(100, "alice", "Alice")
	require.NoError(t, err)

	require.NoError(t, users.UpdateOutputFormat(100, model.OutputFormatMKV))
	require.NoError(t, users.UpdateUploadMode(100, model.UploadModeDocument))
	assert.Error(t, users.UpdateOutputFormat(100, "avi"))
	assert.Error(t, users.UpdateUploadMode(100, "audio"))

	settings, err := users.GetOrCreateSettings(100, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.OutputFormatMKV, settings.OutputFormat)
	assert.Equal(t, model.UploadModeDocument, settings.UploadMode)
}

func TestBanAndUnban(t *testing.T) {
	users := NewUserService(newTestDB(t), newTestLogger())

	assert.False(t, users.IsBanned(200))
	require.NoError(t, users.Ban(200, "spam", 1))
	assert.True(t, users.IsBanned(200))

	// 重复封禁报错
	assert.Error(t, users.Ban(200, "again", 1))

	list, err := users.BanList()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(200), list[0].UserID)
	assert.Equal(t, "spam", list[0].Reason)

	require.NoError(t, users.Unban(200))
	assert.False(t, users.IsBanned(200))

	// 解除不存在的封禁报错
	assert.Error(t, users.Unban(200))
}

func TestAllUserIDs(t *testing.T) {
	users := NewUserService(newTestDB(t), newTestLogger())
	for id := int64(1); id <= 3; id++ {
		_, err := users.GetOrCreateSettings(id, "", "")
		require.NoError(t, err)
	}

	ids, err := users.AllUserIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}
