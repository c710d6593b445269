package container

import (
	"context"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/outline"
)

// unconfiguredBackend は資格情報が未設定のときに使うバックエンド
// 全ての操作が設定エラーを返す
type unconfiguredBackend struct {
	err error
}

func (b unconfiguredBackend) UploadFile(context.Context, []byte, string, string) (string, error) {
	return "", b.err
}

func (b unconfiguredBackend) AttachFile(context.Context, string, string) error {
	return b.err
}

func (b unconfiguredBackend) CreateIndex(context.Context, string, int) (string, error) {
	return "", b.err
}

func (b unconfiguredBackend) ListAssistants(context.Context) ([]binding.Assistant, error) {
	return nil, b.err
}

func (b unconfiguredBackend) CreateAssistant(context.Context, binding.AssistantSpec) (string, error) {
	return "", b.err
}

func (b unconfiguredBackend) CreateThread(context.Context) (string, error) {
	return "", b.err
}

func (b unconfiguredBackend) PostMessage(context.Context, string, string) error {
	return b.err
}

func (b unconfiguredBackend) StreamRun(context.Context, string, string, string, outline.RunHandler) error {
	return b.err
}
