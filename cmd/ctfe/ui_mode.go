package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ctfe/internal/layout"
	"ctfe/internal/scenario"
	"ctfe/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

type runOutcome struct {
	reports []*scenario.Report
	err     error
}

// runWithUI runs the scenarios while a progress view follows them.
func runWithUI(ctx context.Context, eng *layout.Engine, paths []string, opts scenario.Options) ([]*scenario.Report, error) {
	events := make(chan scenario.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		o := opts
		o.Progress = scenario.FanOut(opts.Progress, scenario.ChannelSink{Ch: events})
		reports, err := scenario.RunAll(ctx, eng, paths, o)
		outcomeCh <- runOutcome{reports: reports, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(fmt.Sprintf("running %d scenarios", len(paths)), paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		for range events {
		}
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.reports, uiErr
	}
	return outcome.reports, outcome.err
}
