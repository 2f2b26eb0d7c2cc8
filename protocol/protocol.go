// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the wire contract shared by the two
// backend channels: JSON objects with a mandatory "type" discriminator
// exchanged as text frames over persistent message connections.
//
// The primary channel ("/core") carries coarse assistant-state events
// (listening, speaking, skill handler lifecycle). The secondary GUI
// channel ("/gui") carries session and view synchronization messages.
// Both directions use the same envelope; Decode parses an inbound
// frame, and the Encode* functions build outbound ones.
//
// The package is deliberately dumb about semantics: it decodes fields
// and validates shape, while the connection and skillview packages own
// the state machines that react to the messages.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Primary-channel message types classified by the connection manager.
const (
	// TypeUtterance is the outbound free-text message. Inbound it is
	// produced by the speech recognizer and ignored by this client.
	TypeUtterance = "recognizer_loop:utterance"

	// TypeIntentFailure means no intent matched the last utterance.
	TypeIntentFailure = "intent_failure"

	// TypeAudioOutputStart and TypeAudioOutputEnd bracket the
	// assistant speaking.
	TypeAudioOutputStart = "recognizer_loop:audio_output_start"
	TypeAudioOutputEnd   = "recognizer_loop:audio_output_end"

	// TypeRecordBegin and TypeRecordEnd bracket the assistant
	// listening to the microphone.
	TypeRecordBegin = "recognizer_loop:record_begin"
	TypeRecordEnd   = "recognizer_loop:record_end"

	// TypeRecognitionUnknown means speech was heard but not
	// recognized.
	TypeRecognitionUnknown = "mycroft.speech.recognition.unknown"

	// TypeSkillHandlerStart and TypeSkillHandlerComplete bracket a
	// skill handler execution; start carries the skill name in
	// data.name.
	TypeSkillHandlerStart    = "mycroft.skill.handler.start"
	TypeSkillHandlerComplete = "mycroft.skill.handler.complete"

	// TypeSpeak carries text the assistant is about to speak.
	TypeSpeak = "speak"

	// TypeMetadata carries free-form skill data.
	TypeMetadata = "metadata"

	// TypeGuiConnected announces a GUI view to the backend (outbound,
	// data.gui_id). TypeGuiPort is the backend's answer assigning the
	// GUI channel port (inbound, data.port and data.gui_id).
	TypeGuiConnected = "mycroft.gui.connected"
	TypeGuiPort      = "mycroft.gui.port"
)

// GUI-channel message types dispatched by the skill view.
const (
	TypeSessionSet      = "mycroft.session.set"
	TypeSessionDelete   = "mycroft.session.delete"
	TypeSessionInsert   = "mycroft.session.insert"
	TypeSessionRemove   = "mycroft.session.remove"
	TypeSessionMove     = "mycroft.session.move"
	TypeGuiShow         = "mycroft.gui.show"
	TypeEventsTriggered = "mycroft.events.triggered"
)

// Reserved namespace values.
const (
	// NamespaceActiveSkills scopes session.insert/remove to the
	// ordered active-skill list rather than a skill's session store.
	NamespaceActiveSkills = "mycroft.system.active_skills"

	// NamespaceSystem broadcasts an event to every delegate.
	NamespaceSystem = "system"
)

// noisePrefixes are message type prefixes suppressed before
// classification. Enclosure traffic and the date/time broadcast are
// high-frequency noise that would drown debug logs.
var noisePrefixes = []string{"enclosure", "mycroft-date"}

// Message is the decoded envelope of one inbound frame. Fields beyond
// Type are populated only when present; numeric positions default to
// zero exactly like the upstream client, so bounds validation is the
// receiver's job.
type Message struct {
	Type        string          `json:"type"`
	Namespace   string          `json:"namespace,omitempty"`
	Property    string          `json:"property,omitempty"`
	GuiURL      string          `json:"gui_url,omitempty"`
	EventName   string          `json:"event_name,omitempty"`
	Position    int             `json:"position,omitempty"`
	From        int             `json:"from,omitempty"`
	To          int             `json:"to,omitempty"`
	ItemsNumber int             `json:"items_number,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Decode parses a frame into a Message. It fails on malformed JSON,
// a non-object frame, or an empty type discriminator. Callers drop
// the frame on error; a decode failure is never fatal.
func Decode(frame []byte) (Message, error) {
	var message Message
	if err := json.Unmarshal(frame, &message); err != nil {
		return Message{}, fmt.Errorf("protocol: malformed frame: %w", err)
	}
	if message.Type == "" {
		return Message{}, fmt.Errorf("protocol: frame has no type discriminator")
	}
	return message, nil
}

// IsNoise reports whether a message type belongs to the suppressed
// high-frequency traffic.
func IsNoise(messageType string) bool {
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(messageType, prefix) {
			return true
		}
	}
	return false
}

// DataMap unmarshals the message's data payload as a JSON object.
// A missing payload yields an empty map; any other shape is an error.
func (m Message) DataMap() (map[string]any, error) {
	if len(m.Data) == 0 {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, fmt.Errorf("protocol: data payload is not an object: %w", err)
	}
	return data, nil
}

// SkillIDRows extracts the ordered skill identifiers from a
// session.insert data payload. Each row must be an object with
// exactly one key, "skill_id", holding a string. Any violation
// aborts the whole extraction: a partial insert would shift sibling
// positions and corrupt subsequent positional messages.
func (m Message) SkillIDRows() ([]string, error) {
	var rows []map[string]any
	if err := json.Unmarshal(m.Data, &rows); err != nil {
		return nil, fmt.Errorf("protocol: skill list data is not an array of objects: %w", err)
	}

	skillIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != 1 {
			return nil, fmt.Errorf("protocol: skill list row has keys %v, want exactly [skill_id]", rowKeys(row))
		}
		value, ok := row["skill_id"]
		if !ok {
			return nil, fmt.Errorf("protocol: skill list row has keys %v, want exactly [skill_id]", rowKeys(row))
		}
		skillID, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("protocol: skill_id is %T, want string", value)
		}
		skillIDs = append(skillIDs, skillID)
	}
	return skillIDs, nil
}

func rowKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	return keys
}

// GuiPort extracts the assigned port and view id from a
// mycroft.gui.port message.
func (m Message) GuiPort() (port int, guiID string, err error) {
	var payload struct {
		Port  int    `json:"port"`
		GuiID string `json:"gui_id"`
	}
	if err := json.Unmarshal(m.Data, &payload); err != nil {
		return 0, "", fmt.Errorf("protocol: malformed gui.port payload: %w", err)
	}
	if payload.Port <= 0 {
		return 0, "", fmt.Errorf("protocol: gui.port payload has no usable port")
	}
	return payload.Port, payload.GuiID, nil
}

// SkillName extracts data.name from a skill.handler.start message.
// Missing or non-string names yield the empty string, matching the
// upstream client's tolerant extraction.
func (m Message) SkillName() string {
	data, err := m.DataMap()
	if err != nil {
		return ""
	}
	name, _ := data["name"].(string)
	return name
}

// EncodeUtterance builds the outbound free-text message:
// {"type": "recognizer_loop:utterance", "data": {"utterances": [text]}}.
func EncodeUtterance(text string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"type": TypeUtterance,
		"data": map[string]any{"utterances": []string{text}},
	})
	return frame
}

// EncodeGuiConnected builds the view announcement sent on the primary
// channel when it opens, asking the backend to assign a GUI port.
func EncodeGuiConnected(guiID string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"type": TypeGuiConnected,
		"data": map[string]any{"gui_id": guiID},
	})
	return frame
}
