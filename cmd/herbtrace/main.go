package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var apiURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(os.Stdout)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "herbtrace: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "herbtrace",
		Short: "HerbTrace provenance ledger CLI",
		Long: `herbtrace records supply-chain events against a running HerbTrace API,
queries provenance, and launches the server or worker binaries during development.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&apiURL, "api", envOr("HERBTRACE_API", "http://localhost:3001"), "Base URL of the HerbTrace API")
	cmd.AddCommand(
		newRecordCmd(),
		newProvenanceCmd(),
		newProductsCmd(),
		newAnalyticsCmd(),
		newNetworkCmd(),
		newLabelCmd(),
		newRunCmd(),
		newTestCmd(),
	)
	return cmd
}

func newRecordCmd() *cobra.Command {
	var fields, jsonFields []string
	cmd := &cobra.Command{
		Use:       "record <collection|processing|testing>",
		Short:     "Record a supply-chain event",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"collection", "processing", "testing"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseFields(fields, jsonFields)
			if err != nil {
				return err
			}
			return newClient(apiURL).post(cmd.Context(), "/api/blockchain/"+args[0], payload, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "Payload attribute as key=value, sent as a string (repeatable)")
	cmd.Flags().StringArrayVarP(&jsonFields, "json-field", "J", nil, "Payload attribute as key=<json literal> (repeatable)")
	return cmd
}

func newProvenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <productId>",
		Short: "Show the supply chain of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiURL).get(cmd.Context(), "/api/blockchain/provenance/"+url.PathEscape(args[0]), cmd.OutOrStdout())
		},
	}
}

func newProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products <userId>",
		Short: "List products recorded for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiURL).get(cmd.Context(), "/api/blockchain/products/user/"+url.PathEscape(args[0]), cmd.OutOrStdout())
		},
	}
}

func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show ledger analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiURL).get(cmd.Context(), "/api/blockchain/analytics", cmd.OutOrStdout())
		},
	}
}

func newNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Show network status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiURL).get(cmd.Context(), "/api/blockchain/network/status", cmd.OutOrStdout())
		},
	}
}

func newLabelCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "label <productId>",
		Short: "Download the QR verification label of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".png"
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := newClient(apiURL).download(cmd.Context(), "/api/blockchain/provenance/"+url.PathEscape(args[0])+"/label", f); err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <productId>.png)")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
}

func newTestCmd() *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			goArgs = append(goArgs, pkgs...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	return cmd
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
