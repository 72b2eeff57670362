package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"greedos/internal/dashboard"
	"greedos/internal/logging"
)

// Output modes.
const (
	outputAuto = "auto"
	outputTUI  = "tui"
	outputText = "text"
	outputJSON = "json"
)

// resolveOutput picks the concrete output mode. Auto selects the TUI only
// when stdout is a terminal.
func resolveOutput(mode string, tty bool) (string, error) {
	switch mode {
	case "", outputAuto:
		if tty {
			return outputTUI, nil
		}
		return outputText, nil
	case outputTUI, outputText, outputJSON:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown output %q (want auto, tui, text or json)", mode)
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newRenderer builds the dashboard renderer for mode. The returned cleanup
// restores the terminal.
func newRenderer(mode string, out io.Writer, tty bool) (dashboard.Renderer, func(), error) {
	switch mode {
	case outputTUI:
		r := dashboard.NewTUIRenderer()
		return r, func() { _ = r.Close() }, nil
	case outputText:
		return dashboard.NewTextRendererTo(out, true, tty), func() {}, nil
	case outputJSON:
		return dashboard.NewJSONRendererTo(out), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown output %q", mode)
	}
}

// newLogger sends logs to path when set. Otherwise the TUI gets no logs and
// the line oriented modes log to STDERR.
func newLogger(mode, path string) (*slog.Logger, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return logging.NewWithWriter(f, slog.LevelDebug), func() { f.Close() }, nil
	}
	if mode == outputTUI {
		return logging.Discard(), func() {}, nil
	}
	return logging.New(), func() {}, nil
}
