package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cmr-tools/cmrconsole/config"
	"github.com/cmr-tools/cmrconsole/internal/agentapi"
	"github.com/cmr-tools/cmrconsole/internal/normalize"
	"github.com/cmr-tools/cmrconsole/internal/session"
	"github.com/cmr-tools/cmrconsole/internal/view"
)

// briefSummary mirrors the minimal machine-readable summary of the original
// agent CLI.
type briefSummary struct {
	Intent           string          `json:"intent,omitempty"`
	TotalCollections int64           `json:"total_collections"`
	TotalGranules    int64           `json:"total_granules"`
	BBox             json.RawMessage `json:"bbox,omitempty"`
	Coverage         json.RawMessage `json:"coverage,omitempty"`
}

func queryCMD() *cobra.Command {
	var cfgPath string
	var sessionID string
	var withSession bool
	var rawJSON bool
	var brief bool
	var outFile string

	cmd := &cobra.Command{
		Use:   "query [text...]",
		Short: "Run a one-shot query and render the result",
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

			client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.Timeout)
			raw, err := client.Query(cmd.Context(), q, sessionID)
			if err != nil {
				return err
			}
			if outFile != "" {
				if err := os.WriteFile(outFile, raw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outFile, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved response to %s\n", outFile)
			}
			if rawJSON {
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			}

			p, err := normalize.ParsePayload(raw)
			if err != nil {
				// The backend answered with something that is not the
				// expected document; show it instead of failing.
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(raw)))
				return nil
			}
			if brief {
				return printBrief(cmd, p)
			}

			st := &session.State{ID: sessionID, Query: q}
			shown, sum := st.ApplyPayload(p)
			term := view.NewTerminal(cmd.OutOrStdout())
			term.RenderUpdate(shown, sum, st.Validated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id for multi-turn context")
	cmd.Flags().BoolVar(&withSession, "new-session", false, "mint a session id when none is given")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print the raw response document")
	cmd.Flags().BoolVar(&brief, "brief", false, "print a minimal JSON summary")
	cmd.Flags().StringVar(&outFile, "out", "", "save the raw response JSON to a file")
	return cmd
}

func printBrief(cmd *cobra.Command, p normalize.Payload) error {
	out := briefSummary{Intent: p.Intent}
	if report := p.Report(); report != nil {
		out.TotalCollections = report.TotalCollections
		out.TotalGranules = report.TotalGranules
		if len(report.Queries) > 0 {
			out.BBox = report.Queries[0].SpatialExtent
			out.Coverage = report.Queries[0].TemporalCoverage
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
