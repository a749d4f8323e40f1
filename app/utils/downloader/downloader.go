package downloader

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Options 下载配置
type Options struct {
	UserAgent string
	Referer   string
	Timeout   time.Duration
	MaxSize   int64 // 响应体大小上限，0 表示不限制
}

// DefaultOptions 默认下载配置
func DefaultOptions() *Options {
	return &Options{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Timeout:   time.Minute,
	}
}

// Fetch 从 URL 下载文件到指定路径。先写临时文件，
// 完整落盘后再重命名，避免留下残缺文件。
func Fetch(url, savePath string, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "*/*")
	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP请求失败，状态码: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return fmt.Errorf("创建保存目录失败: %w", err)
	}

	tmpPath := savePath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}

	var body io.Reader = resp.Body
	if opts.MaxSize > 0 {
		body = io.LimitReader(resp.Body, opts.MaxSize)
	}

	written, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("写入文件内容失败: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("下载的文件为空")
	}

	if err := os.Rename(tmpPath, savePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}
