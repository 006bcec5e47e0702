package stream

import (
	"strings"
	"testing"
)

func deltas(texts ...string) []Fragment {
	parts := make([]Fragment, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, Fragment{Kind: KindTextDelta, Text: t, State: StateStreaming})
	}
	return parts
}

func TestAggregateText_Deltas(t *testing.T) {
	tests := []struct {
		name        string
		parts       []Fragment
		wantContent string
		wantRaw     string
		wantDone    bool
	}{
		{
			name:        "concatenates deltas in order",
			parts:       deltas("Hel", "lo ", "world"),
			wantContent: "Hello world",
			wantRaw:     "Hello world",
		},
		{
			name:        "empty parts stream empty",
			parts:       nil,
			wantContent: "",
			wantRaw:     "",
		},
		{
			name: "final replaces accumulated deltas",
			parts: append(deltas("partial junk"),
				Fragment{Kind: KindTextFinal, Text: "Definitive text.", State: StateDone}),
			wantContent: "Definitive text.",
			wantRaw:     "Definitive text.",
			wantDone:    true,
		},
		{
			name: "deltas after final are ignored",
			parts: append(
				[]Fragment{{Kind: KindTextFinal, Text: "done", State: StateDone}},
				deltas(" straggler")...),
			wantContent: "done",
			wantRaw:     "done",
			wantDone:    true,
		},
		{
			name:        "marker in one delta hides the tail",
			parts:       deltas("Here is data:\n```chart\n{\"kind\""),
			wantContent: "Here is data:\n",
			wantRaw:     "Here is data:\n```chart\n{\"kind\"",
		},
		{
			name:        "block marker latches too",
			parts:       deltas("Look:\n```block\n{}"),
			wantContent: "Look:\n",
			wantRaw:     "Look:\n```block\n{}",
		},
		{
			name:        "latch never releases on false positive",
			parts:       deltas("see ```chartreuse paint"),
			wantContent: "see ",
			wantRaw:     "see ```chartreuse paint",
		},
		{
			name:        "partial marker suffix is withheld",
			parts:       deltas("Numbers below\n``"),
			wantContent: "Numbers below\n",
			wantRaw:     "Numbers below\n``",
		},
		{
			name:        "plain backticks mid-text are shown",
			parts:       deltas("use `go test` here."),
			wantContent: "use `go test` here.",
			wantRaw:     "use `go test` here.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg := AggregateText(tc.parts)
			if agg.Content != tc.wantContent {
				t.Errorf("Content = %q, want %q", agg.Content, tc.wantContent)
			}
			if agg.Raw != tc.wantRaw {
				t.Errorf("Raw = %q, want %q", agg.Raw, tc.wantRaw)
			}
			if agg.Streaming == tc.wantDone {
				t.Errorf("Streaming = %v, want %v", agg.Streaming, !tc.wantDone)
			}
		})
	}
}

// The visible prefix must never reach the marker offset, no matter how the
// marker is split across delta boundaries.
func TestAggregateText_SplitMarkerNeverLeaks(t *testing.T) {
	const text = "Sales are up.\n```chart\n{\"kind\":\"bar\"}"
	markerAt := strings.Index(text, "```chart")

	for cut1 := 1; cut1 < len(text)-1; cut1++ {
		for cut2 := cut1 + 1; cut2 < len(text); cut2++ {
			agg := AggregateText(deltas(text[:cut1], text[cut1:cut2], text[cut2:]))
			if agg.Raw != text {
				t.Fatalf("split (%d,%d): Raw = %q", cut1, cut2, agg.Raw)
			}
			if len(agg.Content) > markerAt {
				t.Fatalf("split (%d,%d): visible content %q reaches past marker offset %d",
					cut1, cut2, agg.Content, markerAt)
			}
			if !strings.HasPrefix(text, agg.Content) {
				t.Fatalf("split (%d,%d): content %q is not a prefix of the input", cut1, cut2, agg.Content)
			}
		}
	}
}

func TestStripMarkers(t *testing.T) {
	got := StripMarkers("before ```chart middle ```block after")
	if got != "before  middle  after" {
		t.Errorf("StripMarkers = %q", got)
	}
}
