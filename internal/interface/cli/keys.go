package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-outliner/internal/platform/config"
)

// KeysCheckAction は資格情報の設定状況を表示するコマンドのアクション
func KeysCheckAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	enc := json.NewEncoder(output(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(cfg.Keys())
}
