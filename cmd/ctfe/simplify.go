package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ctfe/internal/mir"
	"ctfe/internal/trace"
)

var simplifyNoBranches bool

func init() {
	simplifyCmd.Flags().BoolVar(&simplifyNoBranches, "no-branches", false, "only clean up the control-flow graph")
}

var simplifyCmd = &cobra.Command{
	Use:   "simplify [flags] body.toml",
	Short: "Fold constant branches and clean up MIR bodies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		in := eng.Types()

		done := phase("load")
		m, err := mir.LoadFile(args[0], eng)
		if err != nil {
			return err
		}
		done(fmt.Sprintf("%d funcs", len(m.Funcs)))

		done = phase("simplify")
		span, _ := trace.StartSpan(cmd.Context(), trace.ScopePass, "simplify")
		folded := 0
		for _, f := range m.Funcs {
			if !simplifyNoBranches {
				folded += mir.SimplifyBranches(f, in)
			}
			mir.SimplifyCFG(f)
		}
		span.WithExtra("folded", strconv.Itoa(folded)).End("ok")
		done(fmt.Sprintf("%d branches folded", folded))

		if err := mir.Validate(m, in); err != nil {
			return fmt.Errorf("simplified body is invalid: %w", err)
		}
		if !quiet(cmd) {
			fmt.Fprintf(cmd.ErrOrStderr(), "folded %d branches\n", folded)
		}
		return mir.DumpModule(cmd.OutOrStdout(), m, in)
	},
}
