package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/playku/playku/internal/storefront"
)

func newSelectorsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "selectors",
		Short: "Print the product image selectors configured for a theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.proxy == "" || opts.theme == "" {
				return errors.New("--proxy and --theme are required")
			}

			client := storefront.NewProxyClient(opts.proxy, &http.Client{Timeout: opts.timeout})
			resp, err := client.FetchCatalog(cmd.Context(), opts.theme)
			if err != nil {
				return err
			}
			selectors, err := storefront.ParseSelectors(resp.Selectors)
			if err != nil {
				return err
			}
			if len(selectors) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "no selectors configured for %q\n", opts.theme)
				return nil
			}
			for _, sel := range selectors {
				fmt.Fprintln(cmd.OutOrStdout(), sel)
			}
			return nil
		},
	}
}
