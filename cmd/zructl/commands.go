package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/zrupay/zrugate/gateway"
	"github.com/zrupay/zrugate/internal/zru"
)

type options struct {
	configPath string
	key        string
	secret     string
	baseURL    string
	timeout    time.Duration
}

func (o *options) client() (*zru.Client, error) {
	cfg, err := gateway.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	creds := cfg.Credentials()
	if o.key != "" {
		creds.Key = o.key
	}
	if o.secret != "" {
		creds.Secret = o.secret
	}
	base := cfg.APIBaseURL
	if o.baseURL != "" {
		base = o.baseURL
	}
	return zru.NewClient(creds,
		zru.WithBaseURL(base),
		zru.WithHTTPClient(&http.Client{Timeout: o.timeout}),
	), nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "zructl",
		Short:         "Operator tool for the ZRU payment API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("ZRU_CONFIG"), "path to YAML config")
	root.PersistentFlags().StringVar(&opts.key, "key", "", "API key (overrides config and ZRU_KEY)")
	root.PersistentFlags().StringVar(&opts.secret, "secret", "", "API secret (overrides config and ZRU_SECRET)")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")

	root.AddCommand(getCmd(opts))
	root.AddCommand(deleteCmd(opts))
	root.AddCommand(refundCmd(opts))
	root.AddCommand(decodeCmd(opts))
	root.AddCommand(kindsCmd())

	return root
}

func getCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get [kind] [id]",
		Short: "Retrieve a remote object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := zru.ParseKind(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			obj, err := c.Resource(kind).Retrieve(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), obj.Attributes)
		},
	}
}

func deleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [kind] [id]",
		Short: "Delete a remote object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := zru.ParseKind(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.Resource(kind).Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", kind, args[1])
			return nil
		},
	}
}

func refundCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund [sale-id]",
		Short: "Refund part or all of a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("amount")
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("parsing amount: %w", err)
			}
			if !amount.IsPositive() {
				return fmt.Errorf("amount must be positive")
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			res, err := c.Sale().Refund(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("refund of %s on sale %s was not accepted", amount.StringFixed(2), args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunded %s on sale %s\n", amount.StringFixed(2), args[0])
			return nil
		},
	}
	cmd.Flags().String("amount", "", "amount to refund, e.g. 10.00")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func decodeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Validate a notification body and print its fields",
		Long:  "Reads a notification body from file, or stdin when file is \"-\" or omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			n, err := c.DecodeNotification(body)
			if err != nil {
				return err
			}

			out := map[string]any{
				"id":                  n.ID(),
				"order_id":            n.OrderID(),
				"type":                n.Type(),
				"status":              n.Status(),
				"subscription_status": n.SubscriptionStatus(),
				"action":              n.Action(),
				"sale_action":         n.SaleAction(),
				"sale_id":             n.SaleID(),
				"charge_id":           n.ChargeID(),
				"gateway":             n.GatewayMeta(),
			}
			if resolve, _ := cmd.Flags().GetBool("resolve"); resolve {
				related, err := resolveRelated(cmd.Context(), n)
				if err != nil {
					return err
				}
				out["related"] = related
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Bool("resolve", false, "fetch the objects the notification refers to")
	return cmd
}

func resolveRelated(ctx context.Context, n *zru.Notification) (map[string]any, error) {
	related := map[string]any{}
	for name, fetch := range map[string]func(context.Context) (*zru.Object, error){
		"transaction":   n.Transaction,
		"subscription":  n.Subscription,
		"authorization": n.Authorization,
		"sale":          n.Sale,
	} {
		obj, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		if obj != nil {
			related[name] = obj.Attributes
		}
	}
	return related, nil
}

func kindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List resource kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range zru.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
