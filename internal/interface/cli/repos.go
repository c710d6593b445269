package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-outliner/internal/infra/github"
)

// ReposListAction は設定済みオーナーのリポジトリ一覧を表示するコマンドのアクション
func ReposListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Config.ValidateOwner(); err != nil {
		return err
	}

	repos, err := appCtx.Container.GitHub.ListRepositories(ctx, appCtx.Config.GitHub.Owner)
	if err != nil {
		return fmt.Errorf("リポジトリ一覧の取得に失敗: %w", err)
	}

	return printRepositories(output(cmd), repos)
}

func printRepositories(w io.Writer, repos []github.Repository) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tURL")
	for _, r := range repos {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Name, r.HTMLURL)
	}
	return tw.Flush()
}
