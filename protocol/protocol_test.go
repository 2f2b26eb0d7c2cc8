// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Run("full gui message", func(t *testing.T) {
		frame := []byte(`{"type":"mycroft.session.set","namespace":"weather","data":{"temperature":21}}`)
		message, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if message.Type != TypeSessionSet {
			t.Errorf("Type = %q, want %q", message.Type, TypeSessionSet)
		}
		if message.Namespace != "weather" {
			t.Errorf("Namespace = %q, want weather", message.Namespace)
		}
	})

	t.Run("positional fields", func(t *testing.T) {
		frame := []byte(`{"type":"mycroft.session.move","from":1,"to":0,"items_number":2}`)
		message, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if message.From != 1 || message.To != 0 || message.ItemsNumber != 2 {
			t.Errorf("positions = (%d,%d,%d), want (1,0,2)", message.From, message.To, message.ItemsNumber)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := Decode([]byte(`{"type":`)); err == nil {
			t.Fatal("expected error for truncated frame")
		}
	})

	t.Run("non-object frame", func(t *testing.T) {
		if _, err := Decode([]byte(`[1,2,3]`)); err == nil {
			t.Fatal("expected error for array frame")
		}
	})

	t.Run("missing type", func(t *testing.T) {
		if _, err := Decode([]byte(`{"namespace":"weather"}`)); err == nil {
			t.Fatal("expected error for missing type")
		}
	})
}

func TestIsNoise(t *testing.T) {
	for _, messageType := range []string{"enclosure.eyes.blink", "mycroft-date", "mycroft-date.tick"} {
		if !IsNoise(messageType) {
			t.Errorf("IsNoise(%q) = false, want true", messageType)
		}
	}
	for _, messageType := range []string{"speak", "metadata", "mycroft.session.set"} {
		if IsNoise(messageType) {
			t.Errorf("IsNoise(%q) = true, want false", messageType)
		}
	}
}

func TestSkillIDRows(t *testing.T) {
	t.Run("valid rows", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"mycroft.session.insert","data":[{"skill_id":"timer"},{"skill_id":"weather"}]}`))
		skillIDs, err := message.SkillIDRows()
		if err != nil {
			t.Fatalf("SkillIDRows failed: %v", err)
		}
		if !reflect.DeepEqual(skillIDs, []string{"timer", "weather"}) {
			t.Errorf("skillIDs = %v", skillIDs)
		}
	})

	t.Run("wrong key aborts whole extraction", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"mycroft.session.insert","data":[{"skill_id":"timer"},{"name":"weather"}]}`))
		if _, err := message.SkillIDRows(); err == nil {
			t.Fatal("expected error for wrong row key")
		}
	})

	t.Run("extra key aborts", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"mycroft.session.insert","data":[{"skill_id":"timer","extra":1}]}`))
		if _, err := message.SkillIDRows(); err == nil {
			t.Fatal("expected error for extra row key")
		}
	})

	t.Run("non-object row aborts", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"mycroft.session.insert","data":["timer"]}`))
		if _, err := message.SkillIDRows(); err == nil {
			t.Fatal("expected error for non-object row")
		}
	})

	t.Run("non-string skill_id aborts", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"mycroft.session.insert","data":[{"skill_id":7}]}`))
		if _, err := message.SkillIDRows(); err == nil {
			t.Fatal("expected error for numeric skill_id")
		}
	})
}

func TestDataMap(t *testing.T) {
	t.Run("missing data yields empty map", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"metadata"}`))
		data, err := message.DataMap()
		if err != nil {
			t.Fatalf("DataMap failed: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("data = %v, want empty", data)
		}
	})

	t.Run("non-object data fails", func(t *testing.T) {
		message, _ := Decode([]byte(`{"type":"metadata","data":[1]}`))
		if _, err := message.DataMap(); err == nil {
			t.Fatal("expected error for array data")
		}
	})
}

func TestGuiPort(t *testing.T) {
	message, _ := Decode([]byte(`{"type":"mycroft.gui.port","data":{"port":18181,"gui_id":"abc"}}`))
	port, guiID, err := message.GuiPort()
	if err != nil {
		t.Fatalf("GuiPort failed: %v", err)
	}
	if port != 18181 || guiID != "abc" {
		t.Errorf("GuiPort = (%d, %q)", port, guiID)
	}

	missing, _ := Decode([]byte(`{"type":"mycroft.gui.port","data":{"gui_id":"abc"}}`))
	if _, _, err := missing.GuiPort(); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestSkillName(t *testing.T) {
	message, _ := Decode([]byte(`{"type":"mycroft.skill.handler.start","data":{"name":"timer"}}`))
	if got := message.SkillName(); got != "timer" {
		t.Errorf("SkillName = %q, want timer", got)
	}

	empty, _ := Decode([]byte(`{"type":"mycroft.skill.handler.start"}`))
	if got := empty.SkillName(); got != "" {
		t.Errorf("SkillName = %q, want empty", got)
	}
}

func TestEncodeUtterance(t *testing.T) {
	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Utterances []string `json:"utterances"`
		} `json:"data"`
	}
	if err := json.Unmarshal(EncodeUtterance("set a timer"), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeUtterance {
		t.Errorf("type = %q", decoded.Type)
	}
	if !reflect.DeepEqual(decoded.Data.Utterances, []string{"set a timer"}) {
		t.Errorf("utterances = %v", decoded.Data.Utterances)
	}
}

func TestEncodeGuiConnected(t *testing.T) {
	var decoded struct {
		Type string `json:"type"`
		Data struct {
			GuiID string `json:"gui_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(EncodeGuiConnected("view-1"), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeGuiConnected || decoded.Data.GuiID != "view-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}
