package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/keylight/internal/logging"
)

// CreateTestPatternCmd creates the test-pattern command.
func CreateTestPatternCmd() *cobra.Command {
	var flags stripFlags

	cmd := &cobra.Command{
		Use:   "test-pattern",
		Short: "Play the hardware test sweep once",
		Long:  `Lights the status range and sweeps every key blue and back to dark, then exits. Use it to check strip wiring and key alignment.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.initLogging()
			logger := logging.GetLogger("render")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := flags.build(ctx, logger)
			if err != nil {
				return err
			}
			defer r.close()

			if err := r.engine.RunTestPattern(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			if !r.output.Healthy() {
				return errors.New("strip write failed: " + r.output.LastError())
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
