package openai

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/ingestion"
)

// CreateIndex はベクトルストアを作成して ID を返す
// expiryDays は最終利用からの失効日数
func (c *Client) CreateIndex(ctx context.Context, name string, expiryDays int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	store, err := c.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String(name),
		ExpiresAfter: openai.VectorStoreNewParamsExpiresAfter{
			Days: int64(expiryDays),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create vector store: %w", err)
	}

	c.logger.Debug("ベクトルストアを作成しました", "name", name, "vectorStoreID", store.ID)
	return store.ID, nil
}

// UploadFile はファイルを purpose=assistants でアップロードして ID を返す
func (c *Client) UploadFile(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(content), filename, contentType),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", err
	}
	return file.ID, nil
}

// AttachFile はアップロード済みファイルをベクトルストアに紐付ける
func (c *Client) AttachFile(ctx context.Context, indexID, fileID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.VectorStores.Files.New(ctx, indexID, openai.VectorStoreFileNewParams{
		FileID: fileID,
	})
	return err
}

// インターフェース実装の確認
var (
	_ ingestion.IndexStore      = (*Client)(nil)
	_ binding.IndexProvisioner  = (*Client)(nil)
	_ binding.AssistantRegistry = (*Client)(nil)
)
