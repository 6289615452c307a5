package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctfe/internal/config"
	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/observ"
	"ctfe/internal/prof"
	"ctfe/internal/trace"
	"ctfe/internal/types"
	"ctfe/internal/ui"
	"ctfe/internal/version"
)

// errFailed signals failing queries; the report already says which.
var errFailed = errors.New("queries failed")

var (
	cfg             config.Config
	timer           *observ.Timer
	traceCleanup    = func() {}
	profiles        *prof.Session
	driverSpan      *trace.Span
	activeTracer    = trace.Nop
	activeHeartbeat *trace.Heartbeat
)

var rootCmd = &cobra.Command{
	Use:               "ctfe",
	Short:             "Compile-time evaluation machine",
	Long:              `ctfe lays out types, reads typed values out of a simulated memory and simplifies MIR bodies`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(simplifyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to ctfe.toml (default: nearest one above the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson|chrome)")
	flags.Int("trace-ring-size", 0, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval, 0 disables")
	flags.String("cpuprofile", "", "write a CPU profile to file")
	flags.String("memprofile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to file")

	err := rootCmd.Execute()
	if err != nil {
		driverSpan.End(err.Error())
	} else {
		driverSpan.End("ok")
	}
	if err != nil && exitCode(err) == 2 {
		if _, derr := dumpTrace(os.Stderr, activeTracer); derr != nil {
			fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", derr)
		}
	}
	traceCleanup()
	if perr := profiles.Stop(); perr != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", perr)
	}
	if timer != nil {
		fmt.Fprint(os.Stderr, timer.Summary())
	}
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		}
		os.Exit(exitCode(err))
	}
}

// prepare loads the configuration, applies the color mode and starts
// tracing before any subcommand runs.
func prepare(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()

	mode, err := flags.GetString("color")
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = color.NoColor || !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}

	var popts prof.Options
	popts.CPU, _ = flags.GetString("cpuprofile")
	popts.Heap, _ = flags.GetString("memprofile")
	popts.Trace, _ = flags.GetString("runtime-trace")
	if popts.Enabled() {
		if profiles, err = prof.Start(popts); err != nil {
			return err
		}
	}

	if on, _ := flags.GetBool("timings"); on {
		timer = observ.NewTimer()
	}
	done := phase("config")

	path, err := flags.GetString("config")
	if err != nil {
		return err
	}
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			cfg, err = config.Discover(wd)
		}
	}
	if err != nil {
		return err
	}
	done(cfg.Path)

	cleanup, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	traceCleanup = cleanup

	span, ctx := trace.StartSpan(cmd.Context(), trace.ScopeDriver, cmd.Name())
	driverSpan = span.WithExtra("config", cfg.Path)
	cmd.SetContext(ctx)
	return nil
}

// phase starts a timing phase when --timings is set.
func phase(name string) func(note string) {
	if timer == nil {
		return func(string) {}
	}
	return timer.Track(name)
}

func newEngine() *layout.Engine {
	return layout.NewEngine(cfg.Target, types.NewInterner())
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

func renderer(cmd *cobra.Command) ui.Renderer {
	width := 100
	if isTerminal(os.Stdout) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return ui.Renderer{Width: width, Color: !color.NoColor, Quiet: quiet(cmd)}
}

// exitCode maps failures to 1 and interpreter bugs to 2.
func exitCode(err error) int {
	var bug *interp.Bug
	if errors.As(err, &bug) {
		return 2
	}
	return 1
}

// dumpTrace writes the events kept by a ring tracer, which lead up to an
// interpreter bug.
func dumpTrace(w io.Writer, t trace.Tracer) (bool, error) {
	return trace.DumpRing(w, t, "the interpreter bug", trace.FormatText)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
