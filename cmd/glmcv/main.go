// Command glmcv fits generalized linear models and estimates their
// prediction error by leave-one-out or K-fold cross-validation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/glmcv/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("glmcv failed", log.ErrAttr(err))
		stop()
		os.Exit(1)
	}
}
