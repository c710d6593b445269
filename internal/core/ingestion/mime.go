package ingestion

import (
	"path"
	"strings"
)

const defaultContentType = "text/plain"

// contentTypes はアップロード時に明示する拡張子ごとのMIMEタイプ
var contentTypes = map[string]string{
	".cpp":  "text/x-c++",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".h":    "text/x-c-header",
	".hpp":  "text/x-c++hdr",
	".c":    "text/x-c",
	".html": "text/html",
	".css":  "text/css",
	".java": "text/x-java-source",
	".sh":   "text/x-shellscript",
	".ps1":  "application/x-powershell",
	".ts":   "text/x-typescript",
	".csv":  "text/csv",
	".php":  "text/x-php",
	".tex":  "text/x-tex",
	".go":   "text/x-go",
	".rb":   "text/x-ruby",
	".cs":   "text/x-csharp",
}

// contentTypeFor は拡張子テーブル、検出器、text/plain の順でMIMEタイプを決める
func contentTypeFor(filePath string, content []byte, detector ContentTypeDetector) string {
	ext := strings.ToLower(path.Ext(filePath))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if detector != nil {
		if ct := detector.DetectContentType(filePath, content); ct != "" {
			return ct
		}
	}
	return defaultContentType
}
