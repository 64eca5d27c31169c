package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
)

func outboxCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect outbox rows",
	}

	var (
		status string
		limit  int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox rows by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("status", status)
			q.Set("limit", strconv.Itoa(limit))

			var resp dto.ListOutboxResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/outbox?"+q.Encode(), nil, "", &resp); err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout(), "ID\tAGGREGATE\tTYPE\tSTATUS\tATTEMPTS\tLAST ERROR")
			for _, e := range resp.Events {
				lastErr := ""
				if e.LastError != nil {
					lastErr = truncate(*e.LastError, 48)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", e.ID, e.AggregateID, e.EventType, e.Status, e.AttemptCount, lastErr)
			}
			return tw.Flush()
		},
	}

	listCmd.Flags().StringVar(&status, "status", "FAILED", "PENDING, PUBLISHED or FAILED")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")

	cmd.AddCommand(listCmd)

	return cmd
}
