// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "testing"

func TestDecodeDelta(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Delta
	}{
		{
			name: "done sentinel",
			raw:  "[DONE]",
			want: Delta{Kind: DeltaDone},
		},
		{
			name: "content fragment",
			raw:  `{"choices":[{"delta":{"content":"Hel"}}]}`,
			want: Delta{Kind: DeltaStructured, Content: "Hel"},
		},
		{
			name: "reasoning fragment",
			raw:  `{"choices":[{"delta":{"reasoning":"thinking..."}}]}`,
			want: Delta{Kind: DeltaStructured, Reasoning: "thinking..."},
		},
		{
			name: "finish marker with trailing content",
			raw:  `{"choices":[{"delta":{"content":"!"},"finish_reason":"stop"}]}`,
			want: Delta{Kind: DeltaStructured, Content: "!", Finished: true},
		},
		{
			name: "non-stop finish marker does not finish",
			raw:  `{"choices":[{"delta":{},"finish_reason":"length"}]}`,
			want: Delta{Kind: DeltaStructured},
		},
		{
			name: "plain text falls back to raw",
			raw:  "heartbeat",
			want: Delta{Kind: DeltaRawText, Content: "heartbeat"},
		},
		{
			name: "malformed json falls back to raw",
			raw:  `{"choices":[{"delta":`,
			want: Delta{Kind: DeltaRawText, Content: `{"choices":[{"delta":`},
		},
		{
			name: "valid json without choices falls back to raw",
			raw:  `{"status":"ok"}`,
			want: Delta{Kind: DeltaRawText, Content: `{"status":"ok"}`},
		},
		{
			name: "empty choices array falls back to raw",
			raw:  `{"choices":[]}`,
			want: Delta{Kind: DeltaRawText, Content: `{"choices":[]}`},
		},
		{
			name: "empty payload falls back to raw",
			raw:  "",
			want: Delta{Kind: DeltaRawText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeDelta(tt.raw)
			if got != tt.want {
				t.Errorf("DecodeDelta(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
