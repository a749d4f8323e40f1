package mxplayer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stream-porter/app/config"
	"stream-porter/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
}

func TestIsVideoPage(t *testing.T) {
	assert.True(t, IsVideoPage("https://www.mxplayer.in/movie/watch-some-movie-online-abc123"))
	assert.True(t, IsVideoPage("https://www.mxplayer.in/show/watch-crime-show/season-1/episode-1-online-xyz"))
	assert.False(t, IsVideoPage("https://www.mxplayer.in/"))
	assert.False(t, IsVideoPage("https://example.com/movie/watch-x"))
	assert.False(t, IsVideoPage("not a url"))
}

func TestParseISODuration(t *testing.T) {
	assert.Equal(t, 5025, parseISODuration("PT1H23M45S"))
	assert.Equal(t, 1380, parseISODuration("PT23M"))
	assert.Equal(t, 45, parseISODuration("PT45S"))
	assert.Equal(t, 0, parseISODuration("invalid"))
	assert.Equal(t, 0, parseISODuration(""))
}

func TestCleanSiteSuffix(t *testing.T) {
	assert.Equal(t, "Some Movie", cleanSiteSuffix("Some Movie | MX Player"))
	assert.Equal(t, "Some Movie", cleanSiteSuffix("Some Movie - MX Player"))
	assert.Equal(t, "Plain Title", cleanSiteSuffix("Plain Title"))
}

func TestFindManifestURL(t *testing.T) {
	html := `<script>var a = {"hls":{"high":"video\/abc\/master.m3u8"}};
	var url = "https://llvod.mxplay.com/video/abc/master.m3u8?token=1";</script>`

	url, err := findManifestURL(html)
	require.NoError(t, err)
	assert.Equal(t, "https://llvod.mxplay.com/video/abc/master.m3u8?token=1", url)
}

func TestFindManifestURLRelativeFallback(t *testing.T) {
	html := `<script>var a = {"hls":{"high":"video\/abc\/playlist.m3u8"}};</script>`

	url, err := findManifestURL(html)
	require.NoError(t, err)
	assert.Equal(t, "https://llvod.mxplay.com/video/abc/playlist.m3u8", url)
}

func TestFindManifestURLMissing(t *testing.T) {
	_, err := findManifestURL("<html><body>nothing here</body></html>")
	assert.Error(t, err)
}

const episodePage = `<!DOCTYPE html>
<html><head>
<title>Crime Show - The Heist | MX Player</title>
<meta property="og:title" content="Crime Show - The Heist | MX Player"/>
<meta property="og:image" content="https://img.mxplay.com/poster.jpg"/>
<script type="application/ld+json">
{"@type":"TVEpisode","name":"Crime Show - The Heist","duration":"PT42M10S",
"thumbnailUrl":["https://img.mxplay.com/thumb.jpg"],
"partOfSeason":{"seasonNumber":2},"episodeNumber":7}
</script>
</head><body>
<script>var stream = "https://llvod.mxplay.com/video/abc/master.m3u8";</script>
</body></html>`

func TestFetchMetadataEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(episodePage))
	}))
	defer srv.Close()

	client := NewClient(newTestLogger())
	meta, err := client.FetchMetadata(context.Background(), srv.URL+"/show/watch-crime-show/season-2/episode-7-online-x")
	require.NoError(t, err)

	assert.Equal(t, "Crime Show", meta.Title)
	assert.Equal(t, "The Heist", meta.EpisodeTitle)
	assert.Equal(t, 2, meta.Season)
	assert.Equal(t, 7, meta.Episode)
	assert.False(t, meta.IsMovie)
	assert.Equal(t, 2530, meta.Duration)
	assert.Equal(t, "https://img.mxplay.com/thumb.jpg", meta.ImageURL)
	assert.Equal(t, "https://llvod.mxplay.com/video/abc/master.m3u8", meta.ManifestURL)
}

func TestFetchMetadataMovieFallsBackToOGMeta(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="Some Movie | MX Player"/>
<meta property="og:image" content="https://img.mxplay.com/movie.jpg"/>
</head><body>
<script>var s = "https://llvod.mxplay.com/video/m/master.m3u8";</script>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	client := NewClient(newTestLogger())
	meta, err := client.FetchMetadata(context.Background(), srv.URL+"/movie/watch-some-movie-online-x")
	require.NoError(t, err)

	assert.Equal(t, "Some Movie", meta.Title)
	assert.True(t, meta.IsMovie)
	assert.Equal(t, 0, meta.Season)
	assert.Equal(t, "https://img.mxplay.com/movie.jpg", meta.ImageURL)
}

func TestFetchMetadataNoTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>empty</body></html>"))
	}))
	defer srv.Close()

	client := NewClient(newTestLogger())
	_, err := client.FetchMetadata(context.Background(), srv.URL+"/movie/watch-x")
	assert.Error(t, err)
}

const masterPlaylist = `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",NAME="Hindi",LANGUAGE="hi",DEFAULT=YES,URI="audio_hi/index.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",NAME="Tamil",LANGUAGE="ta",URI="audio_ta/index.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,AUDIO="audio"
v360/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=1280x720,AUDIO="audio"
v720/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1920x1080,AUDIO="audio"
v1080/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=900000,RESOLUTION=640x360,AUDIO="audio"
v360b/index.m3u8
`

func TestParseMasterPlaylist(t *testing.T) {
	info, err := parseMasterPlaylist([]byte(masterPlaylist))
	require.NoError(t, err)

	// 降序且去重
	assert.Equal(t, []int{1080, 720, 360}, info.Resolutions)
	assert.Equal(t, []string{"Hindi", "Tamil"}, info.AudioTracks)
	assert.Equal(t, 2, info.AudioCount())
}

func TestParseMasterPlaylistInvalid(t *testing.T) {
	_, err := parseMasterPlaylist([]byte("not a playlist"))
	assert.Error(t, err)
}

func TestHeightFromResolution(t *testing.T) {
	assert.Equal(t, 1080, heightFromResolution("1920x1080"))
	assert.Equal(t, 720, heightFromResolution("1280X720"))
	assert.Equal(t, 0, heightFromResolution("garbage"))
	assert.Equal(t, 0, heightFromResolution(""))
}
