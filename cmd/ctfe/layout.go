package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ctfe/internal/scenario"
)

var layoutFormat string

func init() {
	layoutCmd.Flags().StringVar(&layoutFormat, "format", "pretty", "output format (pretty|json)")
}

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] scenario.toml [type...]",
	Short: "Print the computed layout of scenario types",
	Long: `Print size, alignment, ABI, field offsets and variant encoding of the
types declared by a scenario. Arguments after the file name may name a
declared type or be any type expression, such as "[u8; 3]" or "&str".
Without them every declared type is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(layoutFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be pretty or json)", layoutFormat)
		}

		done := phase("load")
		f, err := scenario.LoadFile(args[0])
		if err != nil {
			return err
		}
		eng := newEngine()
		s, err := scenario.Build(f, eng)
		if err != nil {
			return err
		}
		done(s.Name)

		names := args[1:]
		if len(names) == 0 {
			names = s.Order
		}
		done = phase("layout")
		infos := make([]*scenario.LayoutInfo, 0, len(names))
		for _, name := range names {
			ty, ok := s.Types[name]
			if !ok {
				if ty, err = s.ParseType(name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			info, err := scenario.Describe(eng, ty)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			infos = append(infos, info)
		}
		done(fmt.Sprintf("%d types", len(infos)))

		out := cmd.OutOrStdout()
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		r := renderer(cmd)
		for i, info := range infos {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := r.Lines(out, "", info.Lines()); err != nil {
				return err
			}
		}
		return nil
	},
}
