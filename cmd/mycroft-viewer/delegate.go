// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/CilekciGs/mycroft-gui-fixed/skillview"
)

// terminalDelegate is the viewer's stand-in for a rendered GUI
// surface: it narrates show, event, and teardown activity into the
// event log pane instead of drawing templates.
type terminalDelegate struct {
	skillID     string
	templateURL string
	send        func(tea.Msg)
}

func (d *terminalDelegate) SkillID() string { return d.skillID }

func (d *terminalDelegate) TemplateURL() string { return d.templateURL }

func (d *terminalDelegate) Foreground() {
	d.send(delegateEventMsg{line: fmt.Sprintf("show %s (%s)", d.skillID, d.templateURL)})
}

func (d *terminalDelegate) TriggerEvent(name string, data map[string]any) {
	line := fmt.Sprintf("event %s → %s", name, d.skillID)
	if len(data) > 0 {
		line += " " + renderValue(data)
	}
	d.send(delegateEventMsg{line: line})
}

func (d *terminalDelegate) Release() {
	d.send(delegateEventMsg{line: fmt.Sprintf("released %s (%s)", d.skillID, d.templateURL)})
}

// terminalLoader builds the skillview Loader backing the viewer. send
// is indirect because the tea.Program does not exist yet when the
// View is constructed.
func terminalLoader(send func(tea.Msg)) skillview.Loader {
	return func(skillID, templateURL string, data *skillview.SessionData) (skillview.Delegate, error) {
		return &terminalDelegate{skillID: skillID, templateURL: templateURL, send: send}, nil
	}
}
