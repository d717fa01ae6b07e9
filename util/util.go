package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// ReqContext returns a context that is cancelled when the process receives
// an interrupt or termination signal.
func ReqContext(cctx *cli.Context) context.Context {
	ctx, cancel := context.WithCancel(cctx.Context)

	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		cancel()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	return ctx
}
