package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/repo-outliner/internal/interface/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// コンテナ初期化前のログ出力用
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func repoFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "repo",
		Usage:    "リポジトリ名（owner/name またはname。name のみの場合は GITHUB_OWNER を補完）",
		Required: true,
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "repo-outliner",
		Usage: "GitHub リポジトリをOpenAIのベクトルストアに取り込み、アウトラインを生成するツール",
		Commands: []*cli.Command{
			{
				Name:  "keys",
				Usage: "資格情報関連コマンド",
				Commands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "資格情報の設定状況を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.KeysCheckAction,
					},
				},
			},
			{
				Name:  "repos",
				Usage: "リポジトリ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "GITHUB_OWNER のリポジトリ一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.ReposListAction,
					},
				},
			},
			{
				Name:  "files",
				Usage: "ファイル関連コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "取り込み対象のファイル一覧を表示",
						Flags:  []cli.Flag{envFlag(), repoFlag()},
						Action: appcli.FilesListAction,
					},
				},
			},
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "build",
						Usage:  "ベクトルストアとアシスタントを構築（既存があれば再利用）",
						Flags:  []cli.Flag{envFlag(), repoFlag()},
						Action: appcli.IndexBuildAction,
					},
				},
			},
			{
				Name:  "outline",
				Usage: "アウトライン生成コマンド",
				Commands: []*cli.Command{
					{
						Name:   "generate",
						Usage:  "リポジトリのアウトラインを生成",
						Flags:  []cli.Flag{envFlag(), repoFlag()},
						Action: appcli.OutlineGenerateAction,
					},
					{
						Name:  "expand",
						Usage: "アウトラインの1セクションを詳細化",
						Flags: []cli.Flag{
							envFlag(),
							repoFlag(),
							&cli.StringFlag{
								Name:     "topic",
								Usage:    "詳細化するセクションの見出し",
								Required: true,
							},
						},
						Action: appcli.OutlineExpandAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数 SERVER_PORT またはデフォルトの5000）",
							},
						},
						Action: appcli.ServerStartAction,
					},
				},
			},
		},
	}
}
