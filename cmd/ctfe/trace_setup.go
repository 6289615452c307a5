package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctfe/internal/trace"
)

// setupTracing merges the trace flags that were set on the command line
// into base and attaches the resulting tracer to the command context. It
// returns a cleanup function that flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, base trace.Config) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	cfg := base

	if flags.Changed("trace") {
		out, err := flags.GetString("trace")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace flag: %w", err)
		}
		cfg.OutputPath = out
	}
	if flags.Changed("trace-level") {
		s, err := flags.GetString("trace-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		if cfg.Level, err = trace.ParseLevel(s); err != nil {
			return nil, fmt.Errorf("invalid trace level: %w", err)
		}
	} else if flags.Changed("trace") && cfg.Level == trace.LevelOff {
		cfg.Level = trace.LevelPhase
	}
	if flags.Changed("trace-mode") {
		s, err := flags.GetString("trace-mode")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		if cfg.Mode, err = trace.ParseMode(s); err != nil {
			return nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}
	if flags.Changed("trace-format") {
		s, err := flags.GetString("trace-format")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
		}
		if cfg.Format, err = trace.ParseFormat(s); err != nil {
			return nil, fmt.Errorf("invalid trace format: %w", err)
		}
	}
	if flags.Changed("trace-ring-size") {
		n, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("trace ring size must be positive, got %d", n)
		}
		cfg.RingSize = n
	}
	if flags.Changed("trace-heartbeat") {
		d, err := flags.GetDuration("trace-heartbeat")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		cfg.Heartbeat = d
	}

	if cfg.Level == trace.LevelOff {
		ctx := trace.WithTracer(cmd.Context(), trace.Nop)
		cmd.SetContext(ctx)
		return func() {}, nil
	}

	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, cfg.Heartbeat)
	activeHeartbeat = heartbeat

	return func() {
		heartbeat.Stop()
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}
