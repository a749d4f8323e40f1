package engine

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netscapeCookies = `# Netscape HTTP Cookie File
# https://curl.se/docs/http-cookies.html

.mxplayer.in	TRUE	/	TRUE	1756641600	session_id	abc123
.mxplayer.in	TRUE	/	FALSE	1756641600	user_token	xyz789
malformed line without tabs
`

func writeCookieFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestLoadCookieHeader(t *testing.T) {
	path := writeCookieFile(t, []byte(netscapeCookies))

	header, err := LoadCookieHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "session_id=abc123; user_token=xyz789", header)
}

func TestLoadCookieHeaderUTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.Bytes(enc, []byte(netscapeCookies))
	require.NoError(t, err)

	path := writeCookieFile(t, encoded)
	header, err := LoadCookieHeader(path)
	require.NoError(t, err)
	assert.Contains(t, header, "session_id=abc123")
}

func TestLoadCookieHeaderUTF8BOM(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(netscapeCookies)...)
	path := writeCookieFile(t, content)

	header, err := LoadCookieHeader(path)
	require.NoError(t, err)
	assert.Contains(t, header, "user_token=xyz789")
}

func TestLoadCookieHeaderEmptyFile(t *testing.T) {
	path := writeCookieFile(t, []byte("# only comments\n"))

	_, err := LoadCookieHeader(path)
	assert.Error(t, err)
}

func TestLoadCookieHeaderMissingFile(t *testing.T) {
	_, err := LoadCookieHeader(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
