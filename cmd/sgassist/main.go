package main

import (
	"context"
	"log/slog"

	"sgassist/cmd/sgassist/cmd"
	"sgassist/cmd/sgassist/utils"
	"sgassist/lib/osutil"
	"sgassist/lib/telemetry"
)

func main() {
	ctx, stop := osutil.SignalContext(context.Background())

	err := telemetry.SetupFromEnv(ctx, "sgassist")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	err = cmd.ExecuteContext(ctx)
	stop()
	telemetry.Shutdown(context.Background())
	if err != nil {
		utils.Fatal("sgassist failed", err)
	}
}
