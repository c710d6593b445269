package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/repo-outliner/internal/core/binding"
)

// ListAssistants は全ページのアシスタントを取得する
func (c *Client) ListAssistants(ctx context.Context) ([]binding.Assistant, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	iter := c.client.Beta.Assistants.ListAutoPaging(ctx, openai.BetaAssistantListParams{
		Limit: openai.Int(DefaultListPageSize),
	})

	var assistants []binding.Assistant
	for iter.Next() {
		a := iter.Current()
		assistants = append(assistants, binding.Assistant{
			ID:        a.ID,
			Name:      a.Name,
			CreatedAt: time.Unix(a.CreatedAt, 0),
			IndexIDs:  a.ToolResources.FileSearch.VectorStoreIDs,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}

	return assistants, nil
}

// CreateAssistant はファイル検索ツール付きのアシスタントを作成する
func (c *Client) CreateAssistant(ctx context.Context, spec binding.AssistantSpec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	assistant, err := c.client.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        shared.ChatModel(spec.Model),
		Name:         openai.String(spec.Name),
		Instructions: openai.String(spec.Instructions),
		Tools: []openai.AssistantToolUnionParam{
			{OfFileSearch: &openai.FileSearchToolParam{}},
		},
		ToolResources: openai.BetaAssistantNewParamsToolResources{
			FileSearch: openai.BetaAssistantNewParamsToolResourcesFileSearch{
				VectorStoreIDs: []string{spec.IndexID},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	c.logger.Debug("アシスタントを作成しました", "name", spec.Name, "assistantID", assistant.ID)
	return assistant.ID, nil
}
