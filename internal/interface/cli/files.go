package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-outliner/internal/core/ingestion"
)

// FilesListAction は取り込み対象のファイル一覧を表示するコマンドのアクション
func FilesListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Config.ValidateSource(); err != nil {
		return err
	}
	repo, err := appCtx.Repository(cmd)
	if err != nil {
		return err
	}

	files := appCtx.Container.Bindings.ListFiles(ctx, repo)
	appCtx.Logger().Info("ファイル一覧を取得しました", "repository", repo.FullName(), "count", len(files))

	return printFiles(output(cmd), files)
}

func printFiles(w io.Writer, files []ingestion.FileDescriptor) error {
	for _, f := range files {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", f.Path, f.Size); err != nil {
			return err
		}
	}
	return nil
}
