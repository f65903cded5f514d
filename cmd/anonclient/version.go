package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-anon-client/internal/config"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

type versionInfo struct {
	App     string `json:"app" yaml:"app"`
	Version string `json:"version" yaml:"version"`
	Go      string `json:"go" yaml:"go"`
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{App: config.New().GetAppName(), Version: version, Go: runtime.Version()}
			return c.print.print(info, func(w io.Writer) {
				displayAppName(w, info.App)
				fmt.Fprintf(w, "%s (%s)\n", info.Version, info.Go)
			})
		},
	}
}

func displayAppName(w io.Writer, appName string) {
	figure.Write(w, figure.NewFigure(appName, "cybermedium", true))
	fmt.Fprintln(w)
}
