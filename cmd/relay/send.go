package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stdinIsTerminal reports whether the prompt should be shown. Tests override it.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newSendCmd() *cobra.Command {
	var (
		channel  string
		userName string
		userID   string
		server   string
	)

	cmd := &cobra.Command{
		Use:   "send [content]",
		Short: "Send a message to a running relay",
		Long: "Posts a message to the relay's /api/chat/send endpoint. Without content\n" +
			"as an argument, the message is read from stdin. On a terminal the channel\n" +
			"is prompted for too unless --channel is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := sendRequest{Channel: channel, UserName: userName}
			if cmd.Flags().Changed("user-id") {
				req.UserID = &userID
			}

			in := bufio.NewReader(cmd.InOrStdin())
			interactive := stdinIsTerminal()
			if len(args) == 1 {
				req.Content = args[0]
			} else {
				content, err := prompt(cmd, in, interactive, "Message: ")
				if err != nil {
					return err
				}
				req.Content = content
			}
			if interactive && !cmd.Flags().Changed("channel") {
				ch, err := prompt(cmd, in, true, "Channel [general]: ")
				if err != nil {
					return err
				}
				req.Channel = ch
			}
			return runSend(cmd, server, req)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "target channel (default general)")
	cmd.Flags().StringVar(&userName, "user-name", "", "display name")
	cmd.Flags().StringVar(&userID, "user-id", "", "sender id")
	cmd.Flags().StringVar(&server, "server", defaultServer, "relay base URL")
	return cmd
}

// prompt reads one line from in, printing label first when interactive.
func prompt(cmd *cobra.Command, in *bufio.Reader, interactive bool, label string) (string, error) {
	if interactive {
		fmt.Fprint(cmd.OutOrStdout(), label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runSend(cmd *cobra.Command, server string, req sendRequest) error {
	out := cmd.OutOrStdout()

	p, err := newRelayClient(server).Send(cmd.Context(), req)
	if err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			return err
		}
		switch apiErr.StatusCode {
		case http.StatusUnprocessableEntity:
			fmt.Fprintln(out, apiErr.Response.Message)
			fields := make([]string, 0, len(apiErr.Response.Errors))
			for f := range apiErr.Response.Errors {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				for _, msg := range apiErr.Response.Errors[f] {
					fmt.Fprintf(out, "  %s: %s\n", f, msg)
				}
			}
		case http.StatusTooManyRequests:
			fmt.Fprintf(out, "%s Retry in %ds.\n", apiErr.Response.Message, apiErr.Response.RetryAfter)
		}
		return err
	}

	fmt.Fprintf(out, "Sent message %d to #%s at %s\n", p.ID, p.Channel, p.FormattedTime)
	return nil
}
