package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-outliner/internal/core/binding"
)

// IndexBuildAction はリポジトリのインデックスとアシスタントを構築（または再利用）するコマンドのアクション
func IndexBuildAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Config.ValidateSource(); err != nil {
		return err
	}
	if err := appCtx.Config.ValidateOpenAI(); err != nil {
		return err
	}
	repo, err := appCtx.Repository(cmd)
	if err != nil {
		return err
	}

	result, err := appCtx.Container.Bindings.Resolve(ctx, repo)
	if result != nil {
		if printErr := printBuildResult(output(cmd), result); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return fmt.Errorf("インデックスの構築に失敗: %w", err)
	}
	return nil
}

func printBuildResult(w io.Writer, result *binding.BuildResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
