package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCookieHeader 读取 Netscape 格式的 cookies 文件并展平为
// name=value; name=value 形式的 Cookie 请求头。
// 注释行和格式不完整的行会被跳过。
func LoadCookieHeader(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取 cookies 文件失败: %w", err)
	}

	data, err = decodeText(data)
	if err != nil {
		return "", fmt.Errorf("解码 cookies 文件失败: %w", err)
	}

	var pairs []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Netscape 格式共 7 列，名字和值在最后两列
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		name := strings.TrimSpace(fields[5])
		value := strings.TrimSpace(fields[6])
		if name == "" {
			continue
		}
		pairs = append(pairs, name+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if len(pairs) == 0 {
		return "", fmt.Errorf("cookies 文件中没有有效条目")
	}
	return strings.Join(pairs, "; "), nil
}

// decodeText 按 BOM 识别 UTF-16 编码并转为 UTF-8。
// 浏览器插件导出的 cookies 文件在 Windows 上常见 UTF-16 编码。
func decodeText(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return data, nil
	}

	var enc encoding.Encoding
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case data[0] == 0xFE && data[1] == 0xFF:
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		// 去掉可能的 UTF-8 BOM
		return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), nil
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
