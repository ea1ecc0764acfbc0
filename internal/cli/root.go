// Package cli implements racectl, a terminal client for a track server.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/asyncrace/internal/adapters/remote"
	"github.com/okian/asyncrace/internal/config"
	"github.com/okian/asyncrace/pkg/logger"
)

// env carries what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	client *remote.Client
	out    io.Writer
	log    logger.Logger
}

// NewRootCmd builds the racectl command tree. Tables are written to out.
func NewRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	e := &env{cfg: cfg, out: out}
	var (
		baseURL string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "racectl",
		Short:         "Manage the garage, review winners and run races against a track server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remote.New(baseURL, remote.WithTimeout(timeout))
			if err != nil {
				return err
			}
			e.client = c
			e.log = logger.Get().Named("racectl")
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&baseURL, "url", cfg.BackendURL, "base URL of the track server")
	root.PersistentFlags().DurationVar(&timeout, "timeout",
		time.Duration(cfg.RequestTimeoutMS)*time.Millisecond, "timeout of each request")

	root.AddCommand(newGarageCmd(e), newWinnersCmd(e), newRaceCmd(e))
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	root := NewRootCmd(cfg, out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
