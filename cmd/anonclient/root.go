package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-anon-client/internal/config"
)

// cli carries what the commands share. app is only built for commands that need it.
type cli struct {
	fs     afero.Fs
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	output string
	app    *app
	print  *printer
}

func newRootCmd(fs afero.Fs, in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{fs: fs, in: bufio.NewReader(in), out: out}

	root := &cobra.Command{
		Use:   "anonclient",
		Short: "Command line client for the anonymous messaging service",
		Long: `anonclient logs in to the anonymous messaging service, reads and manages the
messages you received and sends anonymous messages to other users.

The session is kept in the data folder (FOLDER, default ./data) between runs and the
access token is renewed automatically when it is about to expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(c.out, c.output)
			if err != nil {
				return err
			}
			c.print = p
			c.errOut = cmd.ErrOrStderr()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputText, "Output format: text, json or yaml")

	root.AddCommand(
		c.loginCmd(),
		c.signupCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.googleLoginCmd(),
		c.shareLinkCmd(),
		c.messagesCmd(),
		c.versionCmd(),
	)
	return root
}

// wire builds the application on first use
func (c *cli) wire() (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := newApp(config.New(), c.fs)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// prompt reads one line of input when a value was not given as a flag.
// The label goes to stderr so stdout only carries the command's result.
func (c *cli) prompt(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(c.errOut, "%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
