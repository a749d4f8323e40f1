package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stream-porter/app/config"
	"stream-porter/app/logger"
)

// DefaultUserAgent 引擎请求站点时使用的浏览器 UA
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// 能识别为下载产物的视频容器扩展名
var videoExtensions = []string{".mp4", ".mkv", ".ts", ".webm"}

// 引擎输出行中的下载百分比
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// Request 一次引擎下载的参数
type Request struct {
	ManifestURL  string
	SaveDir      string // 本次任务的独立子目录
	SaveName     string // 不含扩展名的落盘文件名
	OutputFormat string // mp4 或 mkv
	Resolution   string // 如 "1080"，空或 best 表示不过滤
	CookieHeader string // 展平后的 Cookie 请求头，可为空
	Origin       string
	Referer      string
}

// Engine N_m3u8DL-RE 子进程封装
type Engine struct {
	binaryPath  string
	threadCount int
	retryCount  int
	timeout     time.Duration
	logger      *logger.Logger
}

// New 创建引擎封装
func New(cfg config.DownloadConfig, log *logger.Logger) *Engine {
	return &Engine{
		binaryPath:  cfg.BinaryPath,
		threadCount: cfg.ThreadCount,
		retryCount:  cfg.RetryCount,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:      log,
	}
}

// buildArgs 组装引擎命令行参数
func (e *Engine) buildArgs(req Request) []string {
	args := []string{
		req.ManifestURL,
		"--save-dir", req.SaveDir,
		"--save-name", req.SaveName,
		"--thread-count", strconv.Itoa(e.threadCount),
		"--download-retry-count", strconv.Itoa(e.retryCount),
		"--auto-select",
		"--del-after-done",
		"--no-log",
		"-M", fmt.Sprintf("format=%s:muxer=ffmpeg", req.OutputFormat),
	}

	// 按选定画质过滤视频流，best 表示交给 --auto-select 选最高
	if req.Resolution != "" && req.Resolution != "best" {
		args = append(args, "-sv", fmt.Sprintf("res=%s*", req.Resolution))
	}

	headers := map[string]string{
		"User-Agent": DefaultUserAgent,
	}
	if req.Origin != "" {
		headers["Origin"] = req.Origin
	}
	if req.Referer != "" {
		headers["Referer"] = req.Referer
	}
	if req.CookieHeader != "" {
		headers["Cookie"] = req.CookieHeader
	}
	for name, value := range headers {
		args = append(args, "-H", fmt.Sprintf("%s: %s", name, value))
	}

	return args
}

// Run 执行下载，通过 onProgress 回调百分比，返回产物文件路径。
// 超过配置的硬超时后子进程会被终止并返回错误。
func (e *Engine) Run(ctx context.Context, req Request, onProgress func(percent float64)) (string, error) {
	if err := os.MkdirAll(req.SaveDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := e.buildArgs(req)
	cmd := exec.CommandContext(runCtx, e.binaryPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("open engine stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Infof("启动下载引擎: %s %s", e.binaryPath, req.SaveName)
	e.logger.Debugf("引擎参数: %v", args)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start download engine: %w", err)
	}

	// 逐行扫描引擎输出，提取进度百分比
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := percentPattern.FindStringSubmatch(line); m != nil {
			if percent, err := strconv.ParseFloat(m[1], 64); err == nil && onProgress != nil {
				onProgress(percent)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("download timed out after %s", e.timeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		tail := lastLine(stderr.String())
		if tail != "" {
			return "", fmt.Errorf("download engine exited: %v: %s", err, tail)
		}
		return "", fmt.Errorf("download engine exited: %v", err)
	}

	return e.locateOutput(req)
}

// locateOutput 定位下载产物。优先使用预期路径，
// 引擎混流后扩展名可能和预期不一致，找不到时回退到
// 目录下最新的视频文件。
func (e *Engine) locateOutput(req Request) (string, error) {
	expected := filepath.Join(req.SaveDir, req.SaveName+"."+req.OutputFormat)
	if info, err := os.Stat(expected); err == nil && info.Size() > 0 {
		return expected, nil
	}

	newest, err := newestVideoFile(req.SaveDir)
	if err != nil {
		return "", fmt.Errorf("output file not found: %w", err)
	}
	e.logger.Warnf("预期产物 %s 不存在，回退到 %s", expected, newest)
	return newest, nil
}

// newestVideoFile 返回目录下修改时间最新的视频文件
func newestVideoFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !isVideoFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no video file in %s", dir)
	}
	return newest, nil
}

// isVideoFile 按扩展名判断是否为视频文件
func isVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range videoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// lastLine 取多行文本的最后一个非空行
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
