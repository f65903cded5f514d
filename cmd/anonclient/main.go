package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/jrsteele09/go-anon-client/apiclient"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(afero.NewOsFs(), os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError renders err the way a user should see it
func printError(w io.Writer, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSessionExpired):
		fmt.Fprintln(w, "Your session has expired. Please log in again with `anonclient login`.")
	case errors.Is(err, apperrors.ErrLoginRequired):
		fmt.Fprintln(w, "You are not logged in. Run `anonclient login` or `anonclient google-login`.")
	case errors.Is(err, apperrors.ErrRefreshUnreachable):
		fmt.Fprintln(w, "Could not reach the server to renew your session. Check your connection and try again.")
	default:
		fmt.Fprintf(w, "Error: %s\n", apiclient.UserMessage(err))
	}
}
