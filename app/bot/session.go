package bot

import (
	"fmt"
	"time"

	"stream-porter/app/utils/mxplayer"

	"github.com/patrickmn/go-cache"
)

// 会话状态
const (
	stateChooseResolution = "choose_resolution" // 等待选择画质
	stateConfirm          = "confirm"           // 等待确认开始下载
	stateAwaitGofileToken = "await_gofile_token"
	stateAwaitThumbnail   = "await_thumbnail"
)

// wizardSession 一次链接解析到入队之间的会话数据
type wizardSession struct {
	State      string
	Meta       *mxplayer.Metadata
	Stream     *mxplayer.StreamInfo
	Resolution string // 已选画质
	MessageID  int    // 向导消息的 message_id
}

// sessionStore 用户会话存储，闲置过期自动回收
type sessionStore struct {
	cache *cache.Cache
}

// newSessionStore 创建会话存储
func newSessionStore() *sessionStore {
	return &sessionStore{
		cache: cache.New(15*time.Minute, 5*time.Minute),
	}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("wizard:%d", userID)
}

// Get 取出用户当前会话
func (s *sessionStore) Get(userID int64) (*wizardSession, bool) {
	v, ok := s.cache.Get(sessionKey(userID))
	if !ok {
		return nil, false
	}
	return v.(*wizardSession), true
}

// Put 保存用户会话并刷新过期时间
func (s *sessionStore) Put(userID int64, session *wizardSession) {
	s.cache.Set(sessionKey(userID), session, cache.DefaultExpiration)
}

// Delete 结束用户会话
func (s *sessionStore) Delete(userID int64) {
	s.cache.Delete(sessionKey(userID))
}
