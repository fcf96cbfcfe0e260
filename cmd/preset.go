package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/effects/store"
)

// CreatePresetCmd creates the preset command group.
func CreatePresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Preset file tools",
	}
	cmd.AddCommand(createPresetValidateCmd())
	return cmd
}

func createPresetValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check preset files",
		Long:  `Parses each preset file (TOML, or YAML by extension) and checks every field is known and in range.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				s, err := validatePresetFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (mode %s, note color %s)\n", path, s.Policy.Mode, s.Preset.NoteColor)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d preset files invalid", failed, len(args))
			}
			return nil
		},
	}
}

func validatePresetFile(path string) (effects.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return effects.Settings{}, err
	}
	return store.Decode(data, formatForPath(path))
}

func formatForPath(path string) store.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return store.FormatYAML
	default:
		return store.FormatTOML
	}
}
