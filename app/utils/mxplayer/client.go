package mxplayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stream-porter/app/logger"

	"resty.dev/v3"
)

// 站点常量
const (
	SiteOrigin = "https://www.mxplayer.in"
	StreamBase = "https://llvod.mxplay.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Metadata 从视频页提取的元数据
type Metadata struct {
	Title        string
	EpisodeTitle string
	Season       int
	Episode      int
	IsMovie      bool
	ManifestURL  string // master m3u8 地址
	ImageURL     string
	Duration     int // 秒，可能为 0
	PageURL      string
}

// 页面内容的提取模式
var (
	jsonLDPattern   = regexp.MustCompile(`(?s)<script[^>]+type="application/ld\+json"[^>]*>(.*?)</script>`)
	ogMetaPattern   = regexp.MustCompile(`<meta[^>]+property="og:(title|image)"[^>]+content="([^"]*)"`)
	titleTagPattern = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
	manifestPattern = regexp.MustCompile(`https?://[^"'\s\\]+\.m3u8[^"'\s\\]*`)
	hlsPathPattern  = regexp.MustCompile(`"(?:hls|main|high)"\s*:\s*"([^"]+\.m3u8[^"]*)"`)
	seasonPattern   = regexp.MustCompile(`(?i)season[-\s]?(\d+)`)
	episodePattern  = regexp.MustCompile(`(?i)(?:episode|ep)[-\s]?(\d+)`)
	isoDurPattern   = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?$`)
)

// Client 视频页抓取客户端
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

// NewClient 创建抓取客户端
func NewClient(log *logger.Logger) *Client {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Client{
		http:   client,
		logger: log,
	}
}

// IsVideoPage 判断链接是否为受支持的视频页
func IsVideoPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !strings.HasSuffix(u.Hostname(), "mxplayer.in") {
		return false
	}
	return strings.Contains(u.Path, "/movie/") || strings.Contains(u.Path, "/show/")
}

// FetchMetadata 抓取视频页并提取元数据。
// 标题依次尝试 JSON-LD、og:title 和 <title> 标签；
// 找不到 m3u8 地址时返回错误。
func (c *Client) FetchMetadata(ctx context.Context, pageURL string) (*Metadata, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", SiteOrigin+"/").
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("请求视频页失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("视频页返回状态码 %d", resp.StatusCode())
	}

	html := resp.String()
	meta := &Metadata{
		PageURL: pageURL,
		IsMovie: strings.Contains(pageURL, "/movie/"),
	}

	c.applyJSONLD(html, meta)
	c.applyOGMeta(html, meta)
	c.applyTitleTag(html, meta)
	c.applyEpisodeInfo(pageURL, meta)

	if meta.Title == "" {
		return nil, fmt.Errorf("未能从页面提取标题")
	}

	manifest, err := findManifestURL(html)
	if err != nil {
		return nil, err
	}
	meta.ManifestURL = manifest

	c.logger.Infof("页面解析成功: %s m3u8=%s", meta.Title, meta.ManifestURL)
	return meta, nil
}

// applyJSONLD 从 JSON-LD 结构化数据中提取标题、时长和封面
func (c *Client) applyJSONLD(html string, meta *Metadata) {
	for _, m := range jsonLDPattern.FindAllStringSubmatch(html, -1) {
		var ld struct {
			Type         string          `json:"@type"`
			Name         string          `json:"name"`
			Duration     string          `json:"duration"`
			ThumbnailURL json.RawMessage `json:"thumbnailUrl"`
			PartOfSeason struct {
				SeasonNumber int `json:"seasonNumber"`
			} `json:"partOfSeason"`
			EpisodeNumber int `json:"episodeNumber"`
		}
		if err := json.Unmarshal([]byte(m[1]), &ld); err != nil {
			continue
		}
		if ld.Type != "Movie" && ld.Type != "TVEpisode" && ld.Type != "VideoObject" {
			continue
		}

		if meta.Title == "" {
			meta.Title = strings.TrimSpace(ld.Name)
		}
		if meta.Duration == 0 {
			meta.Duration = parseISODuration(ld.Duration)
		}
		if meta.ImageURL == "" {
			meta.ImageURL = firstThumbnail(ld.ThumbnailURL)
		}
		if ld.PartOfSeason.SeasonNumber > 0 {
			meta.Season = ld.PartOfSeason.SeasonNumber
		}
		if ld.EpisodeNumber > 0 {
			meta.Episode = ld.EpisodeNumber
		}
		return
	}
}

// applyOGMeta 从 Open Graph 标签中补全标题和封面
func (c *Client) applyOGMeta(html string, meta *Metadata) {
	for _, m := range ogMetaPattern.FindAllStringSubmatch(html, -1) {
		switch m[1] {
		case "title":
			if meta.Title == "" {
				meta.Title = cleanSiteSuffix(m[2])
			}
		case "image":
			if meta.ImageURL == "" {
				meta.ImageURL = m[2]
			}
		}
	}
}

// applyTitleTag 最后回退到 <title> 标签
func (c *Client) applyTitleTag(html string, meta *Metadata) {
	if meta.Title != "" {
		return
	}
	if m := titleTagPattern.FindStringSubmatch(html); m != nil {
		meta.Title = cleanSiteSuffix(m[1])
	}
}

// applyEpisodeInfo 从页面地址中解析季集编号，
// 剧集页的标题拆分为剧名和集名。
func (c *Client) applyEpisodeInfo(pageURL string, meta *Metadata) {
	if meta.IsMovie {
		return
	}
	if meta.Season == 0 {
		if m := seasonPattern.FindStringSubmatch(pageURL); m != nil {
			meta.Season, _ = strconv.Atoi(m[1])
		}
	}
	if meta.Episode == 0 {
		if m := episodePattern.FindStringSubmatch(pageURL); m != nil {
			meta.Episode, _ = strconv.Atoi(m[1])
		}
	}
	if meta.Season == 0 {
		meta.Season = 1
	}

	// 剧集标题常见 "剧名 - 集名" 形式
	if parts := strings.SplitN(meta.Title, " - ", 2); len(parts) == 2 {
		meta.Title = strings.TrimSpace(parts[0])
		meta.EpisodeTitle = strings.TrimSpace(parts[1])
	}
}

// findManifestURL 在页面中定位 master m3u8 地址。
// 优先找绝对地址，再尝试播放器数据中的相对路径。
func findManifestURL(html string) (string, error) {
	candidates := manifestPattern.FindAllString(html, -1)
	for _, u := range candidates {
		if strings.Contains(u, "master") || strings.Contains(u, "main") {
			return unescapeURL(u), nil
		}
	}
	if len(candidates) > 0 {
		return unescapeURL(candidates[0]), nil
	}

	if m := hlsPathPattern.FindStringSubmatch(html); m != nil {
		path := unescapeURL(m[1])
		if strings.HasPrefix(path, "http") {
			return path, nil
		}
		return StreamBase + "/" + strings.TrimPrefix(path, "/"), nil
	}

	return "", fmt.Errorf("页面中未找到 m3u8 地址")
}

// unescapeURL 还原 JSON 字符串中被转义的地址
func unescapeURL(u string) string {
	u = strings.ReplaceAll(u, `\/`, "/")
	u = strings.ReplaceAll(u, `&amp;`, "&")
	return u
}

// cleanSiteSuffix 去掉标题尾部的站点名和观看提示
func cleanSiteSuffix(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | MX Player", " - MX Player", "| Watch", "- Watch"} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = strings.TrimSpace(title[:idx])
		}
	}
	return title
}

// firstThumbnail 取 thumbnailUrl 字段的首个地址，兼容字符串和数组两种形式
func firstThumbnail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// parseISODuration 解析 ISO-8601 时长（如 PT1H23M45S）为秒
func parseISODuration(s string) int {
	m := isoDurPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}
