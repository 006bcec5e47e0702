package stream

import (
	"encoding/json"
	"regexp"
	"strings"

	"dashbot-backend/internal/models"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:chart|block)[^\n]*\n(.*?)```")
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// ExtractBlocks parses a finalized message's raw text for fenced chart
// payloads. Each fenced region is parsed and validated independently; a region
// that fails to parse or validate yields no block but its span is still
// stripped from the prose. The returned text carries no residual fence syntax.
func ExtractBlocks(text string) (string, []models.ChartBlock) {
	var blocks []models.ChartBlock
	var prose strings.Builder

	last := 0
	for _, loc := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		prose.WriteString(text[last:loc[0]])
		last = loc[1]

		if block, ok := parseChartPayload(text[loc[2]:loc[3]]); ok {
			blocks = append(blocks, block)
		}
	}
	prose.WriteString(text[last:])

	return normalizeProse(prose.String()), blocks
}

// chartPayload mirrors the wire shape of a fenced chart document, including
// the field aliases older payloads use.
type chartPayload struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Kind        string               `json:"kind"`
	ChartKind   string               `json:"chartKind"`
	Data        []map[string]any     `json:"data"`
	Series      []models.ChartSeries `json:"series"`
	XKey        string               `json:"xKey"`
	XAxisKey    string               `json:"xAxisKey"`
	Height      int                  `json:"height"`
	ShowLegend  *bool                `json:"showLegend"`
	ShowGrid    *bool                `json:"showGrid"`
}

// parseChartPayload is the parse-or-skip step for one fenced region. It never
// returns an error: a malformed or degenerate payload simply produces no block.
func parseChartPayload(body string) (models.ChartBlock, bool) {
	var p chartPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		return models.ChartBlock{}, false
	}

	kind := p.Kind
	if kind == "" {
		kind = p.ChartKind
	}
	if kind != models.ChartKindBar && kind != models.ChartKindLine {
		kind = models.ChartKindBar
	}

	xKey := p.XKey
	if xKey == "" {
		xKey = p.XAxisKey
	}

	var series []models.ChartSeries
	for _, s := range p.Series {
		if s.DataKey != "" {
			series = append(series, s)
		}
	}

	var data []map[string]any
	for _, row := range p.Data {
		clean := scalarFields(row)
		if len(clean) > 0 {
			data = append(data, clean)
		}
	}

	// A chart with nothing to plot is discarded entirely, never surfaced as a
	// degenerate empty chart.
	if len(series) == 0 || len(data) == 0 {
		return models.ChartBlock{}, false
	}

	return models.ChartBlock{
		Title:       p.Title,
		Description: p.Description,
		Kind:        kind,
		Data:        data,
		Series:      series,
		XKey:        xKey,
		Height:      p.Height,
		ShowLegend:  p.ShowLegend,
		ShowGrid:    p.ShowGrid,
	}, true
}

// scalarFields drops nested objects, arrays, and nulls from a data row.
func scalarFields(row map[string]any) map[string]any {
	clean := make(map[string]any, len(row))
	for k, v := range row {
		switch v.(type) {
		case string, float64, bool, json.Number:
			clean[k] = v
		}
	}
	return clean
}

// normalizeProse strips stray marker tokens left behind by extraction and
// collapses the blank-line gaps the removed fences leave in the text.
func normalizeProse(s string) string {
	s = StripMarkers(s)
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
