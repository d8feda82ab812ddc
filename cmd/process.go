package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/amurex/inboxtagger/internal/logging"
	"github.com/amurex/inboxtagger/internal/pipeline"
	"github.com/amurex/inboxtagger/internal/server"
)

func newProcessCmd() *cobra.Command {
	var (
		account        string
		standardColors bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the pipeline once for one account",
		Long: `Fetch, store and classify the unread messages of one account, then print
the same JSON the HTTP endpoint would return. The exit status is non-zero when
the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("error releasing resources", logging.Err(err))
				}
			}()

			return runOnce(ctx, a.pipeline, pipeline.Request{
				UserID:            account,
				UseStandardColors: standardColors,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account (user) id to process")
	cmd.Flags().BoolVar(&standardColors, "standard-colors", false, "Use the fixed color for every label instead of the per-category palette")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

// runOnce runs r for req and writes the response body to w.
func runOnce(ctx context.Context, r server.Runner, req pipeline.Request, w io.Writer) error {
	out, runErr := r.Run(ctx, req)
	status, resp := server.Response(out, runErr)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("run failed with status %d: %w", status, runErr)
	}
	return nil
}

