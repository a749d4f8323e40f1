package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stream-porter/app/config"
	"stream-porter/app/model"
	"stream-porter/app/utils/engine"
	"stream-porter/app/utils/mediainfo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	err     error
	gotReq  engine.Request
	percent float64
}

func (f *fakeEngine) Run(ctx context.Context, req engine.Request, onProgress func(float64)) (string, error) {
	f.gotReq = req
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(req.SaveDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(req.SaveDir, req.SaveName+"."+req.OutputFormat)
	if err := os.WriteFile(path, []byte("video data"), 0644); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(f.percent)
	}
	return path, nil
}

type fakeUploader struct {
	result   *UploadResult
	err      error
	gotThumb string
	gotFile  string
}

func (f *fakeUploader) Upload(ctx context.Context, task *model.Task, filePath, thumbPath string, info *mediainfo.Info, onProgress func(int64, int64)) (*UploadResult, error) {
	f.gotFile = filePath
	f.gotThumb = thumbPath
	if f.err != nil {
		return nil, f.err
	}
	if onProgress != nil {
		onProgress(512, 1024)
	}
	return f.result, nil
}

type fakeThumbnailer struct {
	path string
}

func (f *fakeThumbnailer) Prepare(ctx context.Context, task *model.Task, dir string) string {
	return f.path
}

type fakeNotifier struct {
	started    bool
	completed  bool
	link       string
	failReason string
	percents   []float64
	uploads    int
}

func (f *fakeNotifier) TaskStarted(task *model.Task) { f.started = true }

func (f *fakeNotifier) DownloadProgress(task *model.Task, percent float64) {
	f.percents = append(f.percents, percent)
}

func (f *fakeNotifier) UploadProgress(task *model.Task, current, total int64) { f.uploads++ }

func (f *fakeNotifier) TaskCompleted(task *model.Task) { f.completed = true }

func (f *fakeNotifier) TaskLink(task *model.Task, link string) { f.link = link }

func (f *fakeNotifier) TaskFailed(task *model.Task, reason string) { f.failReason = reason }

func newPipelineFixture(t *testing.T, eng DownloadEngine, up Uploader) (*Pipeline, *DownloadQueue, *fakeNotifier, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Download.Dir = dir
	cfg.Download.PerUserLimit = 2
	cfg.Download.GlobalLimit = 5

	queue := NewDownloadQueue(newTestLogger(), 2, 5)
	notifier := &fakeNotifier{}
	pipeline := NewPipeline(cfg, queue, eng, up, &fakeThumbnailer{path: ""}, nil, notifier, newTestLogger())
	return pipeline, queue, notifier, dir
}

func admitTask(t *testing.T, q *DownloadQueue, req model.DownloadRequest) *model.Task {
	t.Helper()
	_, _, err := q.Add(1, 1, "tester", req)
	require.NoError(t, err)
	task := q.NextAdmissible()
	require.NotNil(t, task)
	return task
}

func TestPipelineSuccessChatUpload(t *testing.T) {
	eng := &fakeEngine{percent: 42}
	up := &fakeUploader{result: &UploadResult{Kind: UploadKindChat}}
	pipeline, queue, notifier, dir := newPipelineFixture(t, eng, up)

	task := admitTask(t, queue, model.DownloadRequest{
		Title:        "Some Movie",
		IsMovie:      true,
		ManifestURL:  "https://example.com/master.m3u8",
		Resolution:   "1080",
		OutputFormat: "mp4",
	})

	err := pipeline.Run(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.True(t, notifier.started)
	assert.True(t, notifier.completed)
	assert.Empty(t, notifier.link)
	assert.Equal(t, []float64{42}, notifier.percents)
	assert.Equal(t, 1, notifier.uploads)

	// 引擎收到的参数来自任务请求
	assert.Equal(t, "https://example.com/master.m3u8", eng.gotReq.ManifestURL)
	assert.Equal(t, "1080", eng.gotReq.Resolution)
	assert.Equal(t, filepath.Join(dir, task.ID), eng.gotReq.SaveDir)

	// 任务目录一定被清理
	_, statErr := os.Stat(filepath.Join(dir, task.ID))
	assert.True(t, os.IsNotExist(statErr))

	// 配额已释放
	assert.Equal(t, 0, queue.GlobalStats().Active)
}

func TestPipelineLinkUpload(t *testing.T) {
	eng := &fakeEngine{}
	up := &fakeUploader{result: &UploadResult{Kind: UploadKindLink, Link: "https://gofile.io/d/abc"}}
	pipeline, queue, notifier, _ := newPipelineFixture(t, eng, up)

	task := admitTask(t, queue, model.DownloadRequest{Title: "Big Movie", IsMovie: true, OutputFormat: "mkv"})

	require.NoError(t, pipeline.Run(context.Background(), task))

	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, "https://gofile.io/d/abc", notifier.link)
	assert.False(t, notifier.completed)
}

func TestPipelineDownloadFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("connection reset")}
	up := &fakeUploader{}
	pipeline, queue, notifier, dir := newPipelineFixture(t, eng, up)

	task := admitTask(t, queue, model.DownloadRequest{Title: "Broken", IsMovie: true, OutputFormat: "mp4"})

	err := pipeline.Run(context.Background(), task)
	require.Error(t, err)

	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.Contains(t, task.Error, "connection reset")
	assert.Contains(t, notifier.failReason, "download failed")
	assert.Equal(t, 0, queue.GlobalStats().Active)

	_, statErr := os.Stat(filepath.Join(dir, task.ID))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineUploadFailureStillCleansUp(t *testing.T) {
	eng := &fakeEngine{}
	up := &fakeUploader{err: errors.New("telegram unavailable")}
	pipeline, queue, notifier, dir := newPipelineFixture(t, eng, up)

	task := admitTask(t, queue, model.DownloadRequest{Title: "Movie", IsMovie: true, OutputFormat: "mp4"})

	require.Error(t, pipeline.Run(context.Background(), task))

	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.Contains(t, notifier.failReason, "upload failed")

	_, statErr := os.Stat(filepath.Join(dir, task.ID))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelinePassesThumbnailToUploader(t *testing.T) {
	eng := &fakeEngine{}
	up := &fakeUploader{result: &UploadResult{Kind: UploadKindChat}}
	pipeline, queue, _, _ := newPipelineFixture(t, eng, up)
	pipeline.thumbnailer = &fakeThumbnailer{path: "/tmp/thumb.jpg"}

	task := admitTask(t, queue, model.DownloadRequest{Title: "Movie", IsMovie: true, OutputFormat: "mp4"})

	require.NoError(t, pipeline.Run(context.Background(), task))
	assert.Equal(t, "/tmp/thumb.jpg", up.gotThumb)
	assert.Contains(t, up.gotFile, ".mp4")
}
