package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/midi"
)

// CreateMIDIInputsCmd creates the midi-inputs command.
func CreateMIDIInputsCmd() *cobra.Command {
	var preferred, excluded []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "midi-inputs",
		Short: "List MIDI input ports",
		Long:  `Lists the MIDI input ports the system driver reports and marks which ones the daemon would prefer or skip.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("midi")

			drv, err := midi.OpenDriver()
			if err != nil {
				return err
			}
			defer drv.Close()

			w := midi.NewWatcher(drv, nil, midi.WatcherConfig{Preferred: preferred, Excluded: excluded}, nil, logger)
			inputs, err := w.Inputs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(inputs)
			}
			if len(inputs) == 0 {
				fmt.Fprintln(out, "No MIDI inputs found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPREFERRED\tEXCLUDED")
			for _, in := range inputs {
				fmt.Fprintf(tw, "%s\t%v\t%v\n", in.Name, in.Preferred, in.Excluded)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&preferred, "preferred", midi.DefaultPreferred, "Preferred device name patterns")
	cmd.Flags().StringSliceVar(&excluded, "excluded", midi.DefaultExcluded, "Excluded device name patterns")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
