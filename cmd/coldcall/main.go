package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"coldcall/internal/app"
	"coldcall/internal/config"
	"coldcall/internal/console"
	"coldcall/internal/logging"
	"coldcall/internal/store"
)

var cfg config.Config

func main() {
	root := &cobra.Command{
		Use:           "coldcall",
		Short:         "Place AI voice calls, classify the outcome and keep a call history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logging.Init("coldcall", cfg.Development(), cfg.LogLevel)
			return nil
		},
	}
	root.AddCommand(serveCmd(), callCmd(), historyCmd(), initDBCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("coldcall failed")
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the call console over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			application, err := app.New(ctx, cfg)
			if err != nil {
				return errors.Wrap(err, "init")
			}
			return application.Run(ctx)
		},
	}
}

func callCmd() *cobra.Command {
	var contact console.Contact
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place one call and wait for its outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			application, err := app.New(ctx, cfg)
			if err != nil {
				return errors.Wrap(err, "init")
			}

			sub, unsubscribe := application.Bus().Subscribe()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				for ev := range sub {
					fmt.Fprintln(cmd.OutOrStdout(), renderEvent(ev))
				}
			}()
			out, err := application.Call(ctx, contact, nil)
			unsubscribe()
			<-printed
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&contact.Name, "name", "", "callee name")
	cmd.Flags().StringVar(&contact.Email, "email", "", "callee email")
	cmd.Flags().StringVar(&contact.Phone, "phone", "", "callee phone number, with country code")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show every recorded call, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			calls, err := st.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(calls))
			return nil
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the call history table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := store.Open(cmd.Context(), cfg.DBPath); err != nil {
				return err
			}
			log.Info().Str("path", cfg.DBPath).Msg("call history initialized")
			return nil
		},
	}
}
