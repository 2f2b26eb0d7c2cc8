// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// mycroft-viewer is a terminal UI for the Mycroft GUI protocol: it
// connects to a backend's message bus, mirrors the active-skill stack
// and session data, and shows assistant activity live.
//
// Configuration comes from the file named by MYCROFT_GUI_CONFIG or
// --config; with neither, the viewer targets a backend on the local
// machine at the well-known port. --backend overrides the primary
// channel URL directly.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/CilekciGs/mycroft-gui-fixed/connection"
	"github.com/CilekciGs/mycroft-gui-fixed/lib/config"
	"github.com/CilekciGs/mycroft-gui-fixed/lib/version"
	"github.com/CilekciGs/mycroft-gui-fixed/skillview"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var backendURL string
	var logOutput string
	var showVersion bool

	flagSet := pflag.NewFlagSet("mycroft-viewer", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $MYCROFT_GUI_CONFIG, or built-in defaults)")
	flagSet.StringVar(&backendURL, "backend", "", "primary channel URL, overriding the config (e.g. ws://192.168.1.40:8181/core)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (stderr would corrupt the display)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Println("mycroft-viewer " + version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	url := cfg.CoreURL()
	if backendURL != "" {
		url = backendURL
	}

	logger, closeLog, err := buildLogger(cfg, logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	manager := connection.NewManager(connection.Options{
		URL:               url,
		ReconnectInterval: time.Duration(cfg.Backend.ReconnectInterval),
		Logger:            logger,
	})
	defer manager.Close()

	// The program does not exist until the model does, and the model
	// needs the view. send drops deliveries that arrive before the
	// program is installed, which only loses pre-UI redraw hints.
	var sendMu sync.Mutex
	var program *tea.Program
	send := func(message tea.Msg) {
		sendMu.Lock()
		target := program
		sendMu.Unlock()
		if target != nil {
			target.Send(message)
		}
	}

	view := skillview.NewView(manager, skillview.ViewOptions{
		ReconnectInterval: time.Duration(cfg.Backend.ReconnectInterval),
		Logger:            logger,
		Loader:            terminalLoader(send),
	})
	defer view.Close()

	subscriptions := []func(){
		manager.OnStatusChange(func(status connection.Status) { send(primaryStatusMsg(status)) }),
		manager.OnStateChange(func(state connection.State) { send(assistantMsg(state)) }),
		manager.OnNotUnderstood(func() { send(notUnderstoodMsg{}) }),
		manager.OnFallbackText(func(text connection.FallbackText) { send(fallbackMsg(text)) }),
		view.OnStatusChange(func(status connection.Status) { send(guiStatusMsg(status)) }),
		view.ActiveSkills().OnChange(func(skillview.ListChange) { send(skillListMsg{}) }),
		view.Sessions().OnChange(func(change skillview.StoreChange) { send(sessionMsg{skillID: change.SkillID}) }),
	}
	defer func() {
		for _, cancel := range subscriptions {
			cancel()
		}
	}()

	p := tea.NewProgram(newModel(manager, view), tea.WithAltScreen())
	sendMu.Lock()
	program = p
	sendMu.Unlock()

	manager.Start()

	_, err = p.Run()
	return err
}

// buildLogger assembles the slog logger. With --log-output, records
// go to the named file as JSON; otherwise they are discarded, because
// stderr is not usable under the alt-screen display.
func buildLogger(cfg *config.Config, logOutput string) (*slog.Logger, func(), error) {
	destination := logOutput
	if destination == "" {
		destination = cfg.Log.File
	}
	if destination == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file %s: %w", destination, err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { file.Close() }, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Mycroft GUI viewer — terminal mirror of the assistant's GUI state.

Connects to the backend's primary channel, announces itself as a GUI,
and follows the active-skill stack, per-skill session data, and
delegate activity over the dedicated GUI channel the backend assigns.
Type an utterance and press enter to submit it as if spoken.

Usage:
  mycroft-viewer [flags]

Examples:
  # Local backend with built-in defaults
  mycroft-viewer

  # Remote backend
  mycroft-viewer --backend ws://192.168.1.40:8181/core

  # Config file plus a debug log for post-mortem analysis
  mycroft-viewer --config display.yaml --log-output viewer.log

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
