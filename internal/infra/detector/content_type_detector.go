// Package detector は go-enry を使ってファイルのMIMEタイプを推定する
package detector

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// languageMIMETypes は go-enry の言語名とMIMEタイプの対応
var languageMIMETypes = map[string]string{
	"Go":              "text/x-go",
	"JavaScript":      "text/javascript",
	"TypeScript":      "text/x-typescript",
	"TSX":             "text/x-typescript",
	"Python":          "text/x-python",
	"Java":            "text/x-java-source",
	"C":               "text/x-c",
	"C++":             "text/x-c++",
	"C#":              "text/x-csharp",
	"Ruby":            "text/x-ruby",
	"PHP":             "text/x-php",
	"Rust":            "text/x-rust",
	"Swift":           "text/x-swift",
	"Kotlin":          "text/x-kotlin",
	"Scala":           "text/x-scala",
	"Shell":           "text/x-shellscript",
	"PowerShell":      "application/x-powershell",
	"Markdown":        "text/markdown",
	"HTML":            "text/html",
	"CSS":             "text/css",
	"SCSS":            "text/x-scss",
	"Less":            "text/x-less",
	"JSON":            "application/json",
	"YAML":            "text/x-yaml",
	"XML":             "text/xml",
	"SQL":             "text/x-sql",
	"TeX":             "text/x-tex",
	"Dockerfile":      "text/x-dockerfile",
	"Makefile":        "text/x-makefile",
	"Protocol Buffer": "text/x-protobuf",
	"GraphQL":         "application/graphql",
	"HCL":             "text/x-hcl",
}

// ContentTypeDetector はファイル名と内容から MIME タイプを判定する
type ContentTypeDetector struct{}

// New は新しい ContentTypeDetector を作成する
func New() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// DetectContentType はファイルパスと内容からMIMEタイプを判定する
// テキストとして扱えない内容や判定できない場合は空文字列を返す
func (d *ContentTypeDetector) DetectContentType(filePath string, content []byte) string {
	if enry.IsBinary(content) {
		return ""
	}

	language := enry.GetLanguage(path.Base(filePath), content)
	if mimeType, ok := languageMIMETypes[language]; ok {
		return mimeType
	}

	if len(content) == 0 {
		return ""
	}

	// 先頭512バイトによる判定。パラメータ部分（; charset=utf-8など）は除去する
	detected := http.DetectContentType(content)
	if idx := strings.Index(detected, ";"); idx != -1 {
		detected = detected[:idx]
	}
	detected = strings.TrimSpace(detected)
	if !strings.HasPrefix(detected, "text/") {
		return ""
	}
	return detected
}
