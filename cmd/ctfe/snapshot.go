package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ctfe/internal/scenario"
)

var snapshotOutput string

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "image path (default: scenario name with .msgpack)")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [flags] scenario.toml",
	Short: "Write the memory a scenario builds to an image file",
	Long: `Build the allocations of a scenario and save them as a msgpack image.
Other scenarios can load the image with the top-level "image" key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := scenario.LoadFile(args[0])
		if err != nil {
			return err
		}
		s, err := scenario.Build(f, newEngine())
		if err != nil {
			return err
		}
		out := snapshotOutput
		if out == "" {
			base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
			out = base + ".msgpack"
		}
		done := phase("snapshot")
		if err := s.Mem.SaveFile(out); err != nil {
			return err
		}
		done(out)
		if !quiet(cmd) {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		}
		return nil
	},
}
