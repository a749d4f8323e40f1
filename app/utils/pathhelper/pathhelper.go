package pathhelper

import (
	"fmt"
	"regexp"
	"strings"
)

// 文件名中不允许出现的字符
var invalidCharsPattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// 连续空白折叠为单个空格
var spacesPattern = regexp.MustCompile(`\s+`)

// SanitizeFilename 清理标题中的非法字符，生成可安全落盘的文件名
func SanitizeFilename(name string) string {
	name = invalidCharsPattern.ReplaceAllString(name, "")
	name = spacesPattern.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	if name == "" {
		name = "video"
	}
	// 避免超长文件名触发文件系统限制
	if len(name) > 180 {
		name = strings.TrimSpace(name[:180])
	}
	return name
}

// EpisodeTag 生成 S01E05 形式的剧集标记
func EpisodeTag(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// BuildSaveName 生成落盘文件名（不含扩展名）。
// 电影使用标题本身，剧集附加季集标记和剧集标题。
// 多音轨时附加音轨数标记，便于用户辨认。
func BuildSaveName(title, episodeTitle string, season, episode int, isMovie bool, audioCount int) string {
	name := title
	if !isMovie {
		name = fmt.Sprintf("%s %s", title, EpisodeTag(season, episode))
		if episodeTitle != "" {
			name = fmt.Sprintf("%s %s", name, episodeTitle)
		}
	}
	if audioCount > 1 {
		name = fmt.Sprintf("%s [%d Audio]", name, audioCount)
	}
	return SanitizeFilename(name)
}
