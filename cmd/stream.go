package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cmr-tools/cmrconsole/config"
	"github.com/cmr-tools/cmrconsole/internal/agentapi"
	"github.com/cmr-tools/cmrconsole/internal/stream"
	"github.com/cmr-tools/cmrconsole/internal/view"
)

func streamCMD() *cobra.Command {
	var cfgPath string
	var sessionID string
	var withSession bool
	var outFile string

	cmd := &cobra.Command{
		Use:   "stream [text...]",
		Short: "Stream incremental results, then reconcile with the final answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return errors.New("query must not be empty")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if withSession && sessionID == "" {
				sessionID = uuid.NewString()
				fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
			}

			client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.Timeout,
				agentapi.WithRetryDelay(cfg.Agent.StreamRetry))
			term := view.NewTerminal(cmd.OutOrStdout())
			logger := log.New(cmd.ErrOrStderr(), "[STREAM] ", log.LstdFlags)
			mgr := stream.NewManager(client, client, term, logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupt)
			go func() {
				<-interrupt
				stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Agent.Timeout)
				defer stopCancel()
				mgr.Stop(stopCtx)
				cancel()
			}()

			if err := mgr.Start(ctx, q, sessionID); err != nil {
				return err
			}
			mgr.Wait()
			if mgr.State() == stream.StateReceiving {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Agent.Timeout)
				mgr.Stop(stopCtx)
				stopCancel()
			}

			if outFile != "" {
				final := mgr.Session()
				if len(final.LastRaw) == 0 {
					return errors.New("no response captured to save")
				}
				if err := os.WriteFile(outFile, final.LastRaw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outFile, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved response to %s\n", outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id for multi-turn context")
	cmd.Flags().BoolVar(&withSession, "new-session", false, "mint a session id when none is given")
	cmd.Flags().StringVar(&outFile, "out", "", "save the final response JSON to a file")
	return cmd
}
