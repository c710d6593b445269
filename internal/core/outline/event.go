package outline

import (
	"encoding/json"
	"fmt"
	"io"
)

// StreamEvent はクライアントへ送るイベント
// Content か Error のどちらか一方を持つ
type StreamEvent struct {
	Content string
	Error   string
	isError bool
}

// ContentEvent はテキスト断片のイベントを作成する
func ContentEvent(text string) StreamEvent {
	return StreamEvent{Content: text}
}

// ErrorEvent はエラーのイベントを作成する
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Error: message, isError: true}
}

// IsError はエラーイベントかどうかを返す
func (e StreamEvent) IsError() bool {
	return e.isError
}

// Kind はメトリクス用のイベント種別を返す
func (e StreamEvent) Kind() string {
	if e.isError {
		return "error"
	}
	return "content"
}

// MarshalJSON は {"content": "..."} または {"error": "..."} を出力する
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	if e.isError {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.Error})
	}
	return json.Marshal(struct {
		Content string `json:"content"`
	}{e.Content})
}

// WriteSSE はイベントを "data: <json>\n\n" の形式で書き込む
func WriteSSE(w io.Writer, e StreamEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write stream event: %w", err)
	}
	return nil
}
