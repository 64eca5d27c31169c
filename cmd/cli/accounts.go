package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
)

func accountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts operations",
	}

	cmd.AddCommand(
		accountsCreateCmd(opts),
		accountsRenameCmd(opts),
		accountsGetCmd(opts),
		accountsListCmd(opts),
	)

	return cmd
}

func accountsCreateCmd(opts *options) *cobra.Command {
	var (
		req  dto.CreateAccountRequest
		meta []string
		key  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			req.Metadata = metadata

			var resp dto.AccountResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/accounts", req, key, &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Account name")
	cmd.Flags().StringVar(&req.Type, "type", "", "Account type (ASSET, LIABILITY, EQUITY, REVENUE, EXPENSE)")
	cmd.Flags().StringVar(&req.Asset, "asset", "", "Asset code, e.g. BRL")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "Metadata as key=value, repeatable")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key")
	cmd.Flags().Func("parent", "Parent account ID", func(s string) error {
		req.ParentAccountID = &s
		return nil
	})
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("asset")

	return cmd
}

func accountsRenameCmd(opts *options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "rename ACCOUNT_ID",
		Short: "Rename an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AccountResponse
			path := "/api/v1/accounts/" + url.PathEscape(args[0])
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPatch, path, dto.RenameAccountRequest{Name: name}, "", &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New account name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func accountsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get ACCOUNT_ID",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AccountResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil, "", &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func accountsListCmd(opts *options) *cobra.Command {
	var asset string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the chart of accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/accounts"
			if asset != "" {
				path += "?asset=" + url.QueryEscape(asset)
			}

			var resp dto.ListAccountsResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, "", &resp); err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout(), "ID\tNAME\tTYPE\tASSET\tACTIVE")
			for _, a := range resp.Accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", a.ID, truncate(a.Name, 32), a.Type, a.Asset, a.IsActive)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "Only accounts in this asset")

	return cmd
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: want key=value", pair)
		}
		metadata[k] = v
	}

	return metadata, nil
}
