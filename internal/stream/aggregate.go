package stream

import "strings"

// chartMarkers are the in-stream tokens that open an embedded chart payload.
// Detection is deliberately conservative: a bare ``` fence never latches, only
// a fence explicitly tagged as a structured payload does.
var chartMarkers = []string{"```chart", "```block"}

// Aggregate is the folded view of one transport message's text fragments.
// Content is what may be shown while streaming: everything strictly before a
// detected chart marker, with a trailing partial-marker run withheld. Raw is
// the full accumulated text, used for extraction once the message finalizes.
type Aggregate struct {
	Content   string
	Raw       string
	Streaming bool
}

// AggregateText walks fragments in order. A text-final snapshot replaces all
// accumulated content and finalizes the message; deltas arriving after that
// are ignored. While streaming, the first occurrence of a chart marker in the
// accumulated text latches a cutoff: no character at or past it is ever shown,
// even if later input proves the marker a false positive. The latch hides too
// much rather than leaking partial payload JSON to the user.
func AggregateText(parts []Fragment) Aggregate {
	var raw string
	finalized := false
	latched := false
	cutoff := 0

	for _, p := range parts {
		switch p.Kind {
		case KindTextFinal:
			raw = p.Text
			finalized = true
		case KindTextDelta:
			if finalized {
				continue
			}
			raw += p.Text
			if !latched {
				if idx := earliestMarker(raw); idx >= 0 {
					latched = true
					cutoff = idx
				}
			}
		}
	}

	if finalized {
		return Aggregate{Content: raw, Raw: raw, Streaming: false}
	}

	visible := raw
	if latched {
		visible = raw[:cutoff]
	} else if hold := markerHoldback(raw); hold > 0 {
		// A marker split across delta boundaries must not leak its prefix.
		visible = raw[:len(raw)-hold]
	}

	return Aggregate{Content: visible, Raw: raw, Streaming: true}
}

// earliestMarker returns the smallest start offset of any chart marker in s,
// or -1 when none occurs.
func earliestMarker(s string) int {
	found := -1
	for _, m := range chartMarkers {
		if idx := strings.Index(s, m); idx >= 0 && (found < 0 || idx < found) {
			found = idx
		}
	}
	return found
}

// markerHoldback returns the length of the longest suffix of s that is a
// proper prefix of any chart marker.
func markerHoldback(s string) int {
	max := 0
	for _, m := range chartMarkers {
		limit := len(m) - 1
		if limit > len(s) {
			limit = len(s)
		}
		for l := limit; l > max; l-- {
			if strings.HasSuffix(s, m[:l]) {
				max = l
				break
			}
		}
	}
	return max
}

// StripMarkers removes stray marker tokens from visible streaming text.
func StripMarkers(s string) string {
	for _, m := range chartMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return s
}
