package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/midi"
)

// CreateReplayCmd creates the replay command.
func CreateReplayCmd() *cobra.Command {
	var flags stripFlags
	var speed float64

	cmd := &cobra.Command{
		Use:   "replay [file.mid]",
		Short: "Render a Standard MIDI File to the strip",
		Long: `Plays a Standard MIDI File through the renderer in real time, as if it were played on the piano. ` +
			`Useful for checking effects and wiring without an instrument.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.initLogging()
			logger := logging.GetLogger("replay").With("file", args[0])

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := flags.build(ctx, logger)
			if err != nil {
				return err
			}
			defer r.close()

			r.engine.Start()
			logger.Info("Replay started", "speed", speed)
			if err := midi.ReplayFile(ctx, args[0], r.keys, speed); err != nil {
				if ctx.Err() != nil {
					logger.Info("Replay interrupted")
					return nil
				}
				return err
			}

			// Let the last releases fade out.
			r.keys.ReleaseAll()
			select {
			case <-ctx.Done():
			case <-time.After(r.live.Get().Policy.FadeDuration() + 100*time.Millisecond):
			}
			logger.Info("Replay finished")
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	flags.register(cmd.Flags())
	return cmd
}
