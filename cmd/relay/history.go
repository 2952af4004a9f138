package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/zulandar/chatrelay/internal/messaging"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		server string
	)

	cmd := &cobra.Command{
		Use:   "history [channel]",
		Short: "Show recent messages in a channel",
		Long:  "Fetches the most recent messages in a channel from a running relay, oldest first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := messaging.DefaultChannel
			if len(args) == 1 {
				channel = args[0]
			}
			return runHistory(cmd, server, channel, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max messages to show (default 50)")
	cmd.Flags().StringVar(&server, "server", defaultServer, "relay base URL")
	return cmd
}

func runHistory(cmd *cobra.Command, server, channel string, limit int) error {
	out := cmd.OutOrStdout()

	msgs, err := newRelayClient(server).History(cmd.Context(), channel, limit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintf(out, "No messages in #%s\n", channel)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Time", "User", "Message"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, m := range msgs {
		table.Append([]string{strconv.FormatUint(uint64(m.ID), 10), m.FormattedTime, m.UserName, m.Content})
	}
	table.Render()
	return nil
}
