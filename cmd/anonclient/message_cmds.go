package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-anon-client/messages"
	"github.com/jrsteele09/go-anon-client/sessions"
)

func (c *cli) messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Read, send and manage anonymous messages",
	}
	cmd.AddCommand(
		c.listMessagesCmd(),
		c.sendMessageCmd(),
		c.replyMessageCmd(),
		c.deleteMessageCmd(),
		c.toggleCmd("favorite", "Mark or unmark a message as favorite", (*messages.Flags).ToggleFavorite, "favorited", "unfavorited"),
		c.toggleCmd("archive", "Archive or unarchive a message", (*messages.Flags).ToggleArchive, "archived", "unarchived"),
	)
	return cmd
}

func (c *cli) listMessagesCmd() *cobra.Command {
	var tab, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the messages you received, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := messages.ParseTab(tab)
			if err != nil {
				return err
			}
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(s sessions.Session) error {
				msgs, err := a.messages.List(cmd.Context(), s.Username)
				if err != nil {
					return err
				}
				msgs = messages.Filter(msgs, t, search)
				return c.print.print(msgs, func(w io.Writer) {
					printMessages(w, msgs)
				})
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(messages.TabAll), "Which messages to show: all, favorites or archived")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show messages containing this text")
	return cmd
}

func printMessages(w io.Writer, msgs []messages.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tMARKS\tMESSAGE")
	for _, m := range msgs {
		received := m.CreatedAt
		if t, ok := m.Created(); ok {
			received = t.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, received, marks(m), oneLine(m.Content))
	}
	tw.Flush()
}

func marks(m messages.Message) string {
	var out []string
	if m.Favorite {
		out = append(out, "*")
	}
	if m.Archived {
		out = append(out, "archived")
	}
	return strings.Join(out, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (c *cli) sendMessageCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "send <username> [message]",
		Short: "Send an anonymous message to a user",
		Long: `Send an anonymous message to a user. No login is needed.

The message is read from standard input when it is not given as an argument.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			content := ""
			if len(args) == 2 {
				content = args[1]
			}
			if content, err = c.prompt("Message", content); err != nil {
				return err
			}

			if err := a.messages.Send(cmd.Context(), args[0], content, email); err != nil {
				return err
			}
			return c.print.status("sent", fmt.Sprintf("Message sent to %s", args[0]))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Optional email the recipient can see")
	return cmd
}

func (c *cli) replyMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply <id> [reply]",
		Short: "Reply to a message you received",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(sessions.Session) error {
				content := ""
				if len(args) == 2 {
					content = args[1]
				}
				if content, err = c.prompt("Reply", content); err != nil {
					return err
				}
				if err := a.messages.Reply(cmd.Context(), id, content); err != nil {
					return err
				}
				return c.print.status("replied", fmt.Sprintf("Reply sent to message %d", id))
			})
		},
	}
}

func (c *cli) deleteMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message you received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(sessions.Session) error {
				if err := a.messages.Delete(cmd.Context(), id); err != nil {
					return err
				}
				return c.print.status("deleted", fmt.Sprintf("Message %d deleted", id))
			})
		},
	}
}

// toggleCmd builds the favorite and archive commands. Marks are local to this machine.
func (c *cli) toggleCmd(use, short string, toggle func(*messages.Flags, int64) (bool, error), on, off string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(sessions.Session) error {
				set, err := toggle(a.messages.Flags(), id)
				if err != nil {
					return err
				}
				state := off
				if set {
					state = on
				}
				return c.print.status(state, fmt.Sprintf("Message %d %s", id, state))
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}
