package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/observability"
	"github.com/signalsfoundry/satdecay/model"
)

// Exit codes distinguish setup failures from everything else.
const (
	exitOK                = 0
	exitError             = 1
	exitCredentialFailure = 2
	exitSourceUnavailable = 3
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}

func execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, model.ErrCredentialFailure):
		return exitCredentialFailure
	case errors.Is(err, model.ErrSourceUnavailable):
		return exitSourceUnavailable
	default:
		return exitError
	}
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
