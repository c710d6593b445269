package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-outliner/internal/core/outline"
)

// OutlineGenerateAction はリポジトリのアウトラインを生成して表示するコマンドのアクション
func OutlineGenerateAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Config.ValidateOpenAI(); err != nil {
		return err
	}
	repo, err := appCtx.Repository(cmd)
	if err != nil {
		return err
	}

	return printStream(output(cmd), appCtx.Container.Outlines.GenerateOutline(ctx, repo))
}

// OutlineExpandAction はアウトラインの1セクションを展開して表示するコマンドのアクション
func OutlineExpandAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Config.ValidateOpenAI(); err != nil {
		return err
	}
	repo, err := appCtx.Repository(cmd)
	if err != nil {
		return err
	}

	return printStream(output(cmd), appCtx.Container.Outlines.ExpandTopic(ctx, repo, cmd.String("topic")))
}

// printStream はテキスト断片をそのまま書き出す
// エラーイベントを受け取った場合はそれをエラーとして返す
func printStream(w io.Writer, events iter.Seq[outline.StreamEvent]) error {
	for e := range events {
		if e.IsError() {
			fmt.Fprintln(w)
			return errors.New(e.Error)
		}
		if _, err := io.WriteString(w, e.Content); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
