package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/audit"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/config"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/secret"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "turnstile: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turnstile",
		Short: "Operations CLI for the AU direct debit gateway",
		Long: `The turnstile CLI covers operational tasks for turnstile-audirectdebit-gw:
generating a web form MAC secret, running the startup self-test against the
current configuration, minting development bearer tokens, inspecting the
capture audit trail, and launching the server and worker binaries directly.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newKeygenCmd(),
		newSelftestCmd(),
		newTokenCmd(),
		newAuditCmd(),
		newServiceRunner("serve", "./cmd/server", "Run the gateway HTTP server"),
		newServiceRunner("work", "./cmd/worker", "Run the capture audit worker"),
	)
	return cmd
}

func newServiceRunner(name, path, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}

func newKeygenCmd() *cobra.Command {
	var size int
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "Write a new random web form MAC secret file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			key := make([]byte, size)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if err := os.WriteFile(path, key, 0o600); err != nil {
				return fmt.Errorf("write secret file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d-byte secret to %s\n", size, path)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 32, "Secret size in bytes")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing secret file")
	return cmd
}

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the web form MAC startup self-test",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := secret.NewStore(cfg.SecretPath, cfg.MacAlgorithm)
			if err != nil {
				return err
			}
			if err := store.Check(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "web form MAC secret is OK")
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var tid int32
	var principal string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for the gateway API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p, err := uuid.Parse(principal)
			if err != nil {
				return fmt.Errorf("parse principal: %w", err)
			}
			token, err := scope.NewParser([]byte(cfg.AuthSecret)).Sign(scope.Scope{TID: tid, Principal: p})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int32Var(&tid, "tid", 1, "Tenant id to assert")
	cmd.Flags().StringVar(&principal, "principal", "", "Principal UUID to assert")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var tid int32
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent capture events for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := audit.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()
			records, err := audit.NewRepository(pool).Recent(ctx, tid, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().Int32Var(&tid, "tid", 1, "Tenant id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum events to show")
	return cmd
}
