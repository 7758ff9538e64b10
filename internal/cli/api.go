package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
	"github.com/garthlabs/garth-go/internal/config"
)

func newAPICmd(flags *globalFlags) *cobra.Command {
	var (
		method  string
		data    string
		jqExpr  string
		rawOut  bool
		queries []string
	)

	cmd := &cobra.Command{
		Use:   "api <path>",
		Short: "Call a Connect API endpoint directly",
		Long: "Calls an arbitrary connectapi endpoint with the stored session,\n" +
			"for example: garth api /userprofile-service/socialProfile",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			client, err := newStoredClient(cmd.Context(), cfg, flags.Verbose)
			if err != nil {
				return err
			}

			params := url.Values{}
			for _, q := range queries {
				k, v, ok := strings.Cut(q, "=")
				if !ok {
					return garth.ErrUsage("query must be key=value: " + q)
				}
				params.Add(k, v)
			}

			var body any
			if data != "" {
				if strings.HasPrefix(data, "@") {
					raw, err := os.ReadFile(data[1:])
					if err != nil {
						return err
					}
					body = raw
				} else {
					body = data
				}
			}

			resp, err := client.ConnectAPI(cmd.Context(), strings.ToUpper(method), args[0], params, body)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, jqExpr, rawOut)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body (JSON string, or @file)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the JSON response with a jq expression")
	cmd.Flags().BoolVar(&rawOut, "raw", false, "Print the response body verbatim")
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "Query parameter key=value (repeatable)")

	return cmd
}

// newStoredClient builds a client from stored credentials only. It
// never starts an interactive login; that is what `garth login` is for.
func newStoredClient(ctx context.Context, cfg *config.Config, verbose bool) (*garth.Client, error) {
	opts := garth.Options{
		Domain:   cfg.Domain,
		TokenDir: cfg.TokenDir,
		Verbose:  verbose,
	}
	switch {
	case cfg.Tokens != "":
		opts.TokenString = cfg.Tokens
	case cfg.Keyring:
		o1, o2, err := (garth.Keyring{}).Load(cfg.Domain)
		if err != nil {
			return nil, err
		}
		encoded, err := garth.DumpTokens(o1, o2)
		if err != nil {
			return nil, err
		}
		opts.TokenString = encoded
		opts.NoPersist = true
	}
	return garth.NewClient(ctx, opts)
}

func printResponse(cmd *cobra.Command, resp []byte, jqExpr string, rawOut bool) error {
	if len(resp) == 0 {
		return nil
	}
	if rawOut || !json.Valid(resp) {
		cmd.OutOrStdout().Write(resp)
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	}
	if jqExpr != "" {
		return runJQ(cmd, resp, jqExpr)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}

func runJQ(cmd *cobra.Command, resp []byte, expr string) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return garth.ErrUsage("invalid jq expression: " + err.Error())
	}
	var input any
	if err := json.Unmarshal(resp, &input); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return err
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}
