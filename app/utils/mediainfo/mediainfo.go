package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Info 视频文件的基本媒体信息
type Info struct {
	DurationSeconds int
	Width           int
	Height          int
	AudioCount      int
}

// ffprobe 的 JSON 输出结构，只取需要的字段
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 通过 ffprobe 读取视频文件的媒体信息。
// ffprobe 不可用或解析失败时返回错误，调用方按尽力而为处理。
func Probe(ctx context.Context, path string) (*Info, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe 执行失败: %w", err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return nil, fmt.Errorf("解析 ffprobe 输出失败: %w", err)
	}

	info := &Info{}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		info.DurationSeconds = int(d)
	}
	for _, stream := range probed.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Width > info.Width {
				info.Width = stream.Width
				info.Height = stream.Height
			}
		case "audio":
			info.AudioCount++
		}
	}
	return info, nil
}
