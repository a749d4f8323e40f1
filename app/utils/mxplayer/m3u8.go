package mxplayer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

// StreamInfo master 播放列表解析结果
type StreamInfo struct {
	Resolutions []int    // 可选高度列表，降序去重
	AudioTracks []string // 音轨名称列表
}

// AudioCount 音轨数量，没有独立音轨时按 1 处理
func (s *StreamInfo) AudioCount() int {
	if len(s.AudioTracks) == 0 {
		return 1
	}
	return len(s.AudioTracks)
}

// FetchStreamInfo 拉取并解析 master 播放列表，
// 返回可选分辨率和音轨信息供用户选择。
func (c *Client) FetchStreamInfo(ctx context.Context, manifestURL string) (*StreamInfo, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Origin", SiteOrigin).
		SetHeader("Referer", SiteOrigin+"/").
		Get(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("请求播放列表失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("播放列表返回状态码 %d", resp.StatusCode())
	}

	return parseMasterPlaylist([]byte(resp.String()))
}

// parseMasterPlaylist 从 master 播放列表中提取分辨率和音轨
func parseMasterPlaylist(content []byte) (*StreamInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(content), true)
	if err != nil {
		return nil, fmt.Errorf("解析播放列表失败: %w", err)
	}
	if listType != m3u8.MASTER {
		// 媒体播放列表没有可选项，按单一画质处理
		return &StreamInfo{}, nil
	}

	master := playlist.(*m3u8.MasterPlaylist)

	heightSet := make(map[int]bool)
	audioSet := make(map[string]bool)
	var info StreamInfo
	for _, variant := range master.Variants {
		if variant == nil {
			continue
		}
		if h := heightFromResolution(variant.Resolution); h > 0 && !heightSet[h] {
			heightSet[h] = true
			info.Resolutions = append(info.Resolutions, h)
		}
		for _, alt := range variant.Alternatives {
			if alt == nil || alt.Type != "AUDIO" {
				continue
			}
			name := alt.Name
			if name == "" {
				name = alt.Language
			}
			if name != "" && !audioSet[name] {
				audioSet[name] = true
				info.AudioTracks = append(info.AudioTracks, name)
			}
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(info.Resolutions)))
	if len(info.Resolutions) == 0 {
		return nil, fmt.Errorf("播放列表中没有视频流")
	}
	return &info, nil
}

// heightFromResolution 从 1920x1080 形式的分辨率中取高度
func heightFromResolution(res string) int {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return h
}
