package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
)

func transactionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Ledger transaction operations",
	}

	cmd.AddCommand(transactionsPostCmd(opts), transactionsGetCmd(opts))

	return cmd
}

func transactionsPostCmd(opts *options) *cobra.Command {
	var (
		req     dto.PostTransactionRequest
		entries []string
		key     string
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced ledger transaction",
		Example: `  ledgercore-cli transactions post --source sale-42 --description "Sale" \
    --entry cash:DEBIT:100:BRL --entry revenue:CREDIT:100:BRL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Entries = make([]dto.EntryRequest, 0, len(entries))
			for _, raw := range entries {
				entry, err := parseEntry(raw)
				if err != nil {
					return err
				}
				req.Entries = append(req.Entries, entry)
			}

			var resp dto.TransactionResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/transactions", req, key, &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&req.SourceTransactionID, "source", "", "Upstream transaction ID")
	cmd.Flags().StringVar(&req.Description, "description", "", "Transaction description")
	cmd.Flags().StringArrayVar(&entries, "entry", nil, "Entry as ACCOUNT:DEBIT|CREDIT:AMOUNT:ASSET, repeatable")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func transactionsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get TRANSACTION_ID",
		Short: "Show a ledger transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.TransactionResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/transactions/"+url.PathEscape(args[0]), nil, "", &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

// parseEntry parses ACCOUNT:TYPE:AMOUNT:ASSET[:DESCRIPTION].
func parseEntry(raw string) (dto.EntryRequest, error) {
	parts := strings.SplitN(raw, ":", 5)
	if len(parts) < 4 {
		return dto.EntryRequest{}, fmt.Errorf("invalid entry %q: want ACCOUNT:DEBIT|CREDIT:AMOUNT:ASSET", raw)
	}

	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return dto.EntryRequest{}, fmt.Errorf("invalid entry %q: amount: %w", raw, err)
	}

	entry := dto.EntryRequest{
		AccountID: parts[0],
		Type:      strings.ToUpper(parts[1]),
		Amount:    amount,
		Asset:     parts[3],
	}
	if len(parts) == 5 {
		entry.Description = parts[4]
	}

	return entry, nil
}
