package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := appCtx.Config.Server.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}

	return appCtx.Container.HTTPServer().Run(ctx, fmt.Sprintf(":%d", port))
}
