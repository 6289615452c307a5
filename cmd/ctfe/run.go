package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ctfe/internal/scenario"
)

var (
	runJobs   int
	runFormat string
	runUI     string
)

func init() {
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "scenarios evaluated concurrently (default from ctfe.toml)")
	runCmd.Flags().StringVar(&runFormat, "format", "pretty", "output format (pretty|json)")
	runCmd.Flags().StringVar(&runUI, "ui", "auto", "live progress view (auto|on|off)")
}

var runCmd = &cobra.Command{
	Use:   "run [flags] scenario.toml...",
	Short: "Evaluate the queries of scenario files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(runFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be pretty or json)", runFormat)
		}
		tally := &scenario.Tally{}
		activeHeartbeat.SetStatus(tally.String)
		opts := scenario.Options{Jobs: cfg.Jobs, Machine: cfg.Machine, Progress: tally}
		if runJobs > 0 {
			opts.Jobs = runJobs
		}

		mode, err := readUIMode(runUI)
		if err != nil {
			return err
		}

		done := phase("run")
		var reports []*scenario.Report
		if format == "pretty" && !quiet(cmd) && shouldUseTUI(mode) {
			reports, err = runWithUI(cmd.Context(), newEngine(), args, opts)
		} else {
			reports, err = scenario.RunAll(cmd.Context(), newEngine(), args, opts)
		}
		done(fmt.Sprintf("%d scenarios", len(args)))
		if err != nil {
			return err
		}

		var failed int
		if format == "json" {
			failed, err = renderRunJSON(cmd.OutOrStdout(), reports)
		} else {
			failed, err = renderer(cmd).Reports(cmd.OutOrStdout(), reports)
		}
		if err != nil {
			return err
		}
		if failed > 0 {
			return errFailed
		}
		return nil
	},
}

type resultPayload struct {
	Name        string `json:"name"`
	Op          string `json:"op"`
	Pass        bool   `json:"pass"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Code        string `json:"code,omitempty"`
	Expect      string `json:"expect,omitempty"`
	ExpectError string `json:"expect_error,omitempty"`
}

type reportPayload struct {
	Name       string          `json:"name"`
	Path       string          `json:"path,omitempty"`
	Passed     int             `json:"passed"`
	Total      int             `json:"total"`
	DurationMS float64         `json:"duration_ms"`
	Results    []resultPayload `json:"results"`
}

func renderRunJSON(out io.Writer, reports []*scenario.Report) (int, error) {
	payload := make([]reportPayload, 0, len(reports))
	failed := 0
	for _, rep := range reports {
		rp := reportPayload{
			Name:       rep.Name,
			Path:       rep.Path,
			Passed:     rep.Passed(),
			Total:      len(rep.Results),
			DurationMS: float64(rep.Dur.Microseconds()) / 1000,
			Results:    make([]resultPayload, 0, len(rep.Results)),
		}
		failed += rp.Total - rp.Passed
		for i := range rep.Results {
			res := &rep.Results[i]
			r := resultPayload{
				Name:        res.Query.Name,
				Op:          string(res.Query.Op),
				Pass:        res.Pass(),
				Output:      res.Output,
				Code:        res.Code,
				Expect:      res.Query.Expect,
				ExpectError: res.Query.ExpectError,
			}
			if res.Err != nil {
				r.Error = res.Err.Error()
			}
			rp.Results = append(rp.Results, r)
		}
		payload = append(payload, rp)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return failed, enc.Encode(payload)
}
