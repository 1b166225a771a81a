// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStartEnvelopeWireFormat(t *testing.T) {
	at := time.UnixMilli(1730000000123)
	data, err := json.Marshal(NewStartEnvelope(at))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"Chatbot":{"browser_ts_ms":1730000000123}}`
	if string(data) != want {
		t.Errorf("Start envelope = %s, want %s", data, want)
	}
}

func TestUserInputEnvelopeWireFormat(t *testing.T) {
	data, err := json.Marshal(NewUserInputEnvelope("hello there"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"ChatbotUserInput":{"text":"hello there"}}`
	if string(data) != want {
		t.Errorf("User input envelope = %s, want %s", data, want)
	}
}
