package events_test

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/warroomlabs/warroom/internal/events"
)

var hhmmss = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

func TestNewStampsWallClock(t *testing.T) {
	m := events.New("ChairAgent", "opening triage", events.KindSpeech)
	if !hhmmss.MatchString(m.Timestamp) {
		t.Errorf("timestamp %q is not HH:MM:SS", m.Timestamp)
	}
	if m.Type != "" {
		t.Errorf("spoken message carries synthetic type %q", m.Type)
	}
}

func TestMessageWireShape(t *testing.T) {
	m := events.New("MainAgent", "assessment", events.KindSpeech)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["agent"] != "MainAgent" || got["message_type"] != "speech" {
		t.Errorf("wire shape: %v", got)
	}
	if _, present := got["type"]; present {
		t.Error("empty type field should be omitted")
	}
}

func TestPingOmitsEverythingButType(t *testing.T) {
	data, err := json.Marshal(events.Ping())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Errorf("ping wire form: %s", data)
	}
}

func TestWaitingIsControlKind(t *testing.T) {
	m := events.Waiting("waiting for Dana")
	if m.Type != "waiting_approval" || m.MessageType != events.KindControl {
		t.Errorf("waiting notice: %+v", m)
	}
	if !hhmmss.MatchString(m.Timestamp) {
		t.Errorf("timestamp %q is not HH:MM:SS", m.Timestamp)
	}
}
