package gofile

import (
	"context"
	"fmt"
	"time"

	"stream-porter/app/logger"

	"resty.dev/v3"
)

const apiBase = "https://api.gofile.io"

// Client Gofile 上传客户端，用于超出 Telegram 大小上限的文件
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

// New 创建 Gofile 客户端
func New(log *logger.Logger) *Client {
	client := resty.New().
		SetTimeout(30 * time.Minute)

	return &Client{
		http:   client,
		logger: log,
	}
}

type serversResponse struct {
	Status string `json:"status"`
	Data   struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	} `json:"data"`
}

type uploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		DownloadPage string `json:"downloadPage"`
		FileID       string `json:"fileId"`
		FileName     string `json:"fileName"`
	} `json:"data"`
}

// bestServer 获取当前可用的上传服务器
func (c *Client) bestServer(ctx context.Context) (string, error) {
	var result serversResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(apiBase + "/servers")
	if err != nil {
		return "", fmt.Errorf("gofile server request: %w", err)
	}
	if resp.IsError() || result.Status != "ok" || len(result.Data.Servers) == 0 {
		return "", fmt.Errorf("gofile server request failed with status %d", resp.StatusCode())
	}
	return result.Data.Servers[0].Name, nil
}

// Upload 上传文件并返回下载页链接。
// token 为空时匿名上传，文件会在一段时间后过期。
func (c *Client) Upload(ctx context.Context, filePath, token string) (string, error) {
	server, err := c.bestServer(ctx)
	if err != nil {
		return "", err
	}

	uploadURL := fmt.Sprintf("https://%s.gofile.io/contents/uploadfile", server)
	c.logger.Infof("开始 Gofile 上传: %s -> %s", filePath, server)

	req := c.http.R().
		SetContext(ctx).
		SetFile("file", filePath)
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	var result uploadResponse
	resp, err := req.SetResult(&result).Post(uploadURL)
	if err != nil {
		return "", fmt.Errorf("gofile upload: %w", err)
	}
	if resp.IsError() || result.Status != "ok" || result.Data.DownloadPage == "" {
		return "", fmt.Errorf("gofile upload failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Infof("Gofile 上传完成: %s", result.Data.DownloadPage)
	return result.Data.DownloadPage, nil
}
