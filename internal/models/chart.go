package models

// Chart kinds the dashboard can render.
const (
	ChartKindBar  = "bar"
	ChartKindLine = "line"
)

// ChartSeries describes one plotted series of a chart block.
type ChartSeries struct {
	DataKey string `json:"dataKey"`
	Name    string `json:"name,omitempty"`
	Color   string `json:"color,omitempty"`
	Type    string `json:"type,omitempty"`
}

// ChartBlock is a structured chart specification embedded in assistant output.
// Data rows only carry scalar fields; a block is never materialized with empty
// data or series.
type ChartBlock struct {
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Kind        string           `json:"kind"`
	Data        []map[string]any `json:"data"`
	Series      []ChartSeries    `json:"series"`
	XKey        string           `json:"xKey,omitempty"`
	Height      int              `json:"height,omitempty"`
	ShowLegend  *bool            `json:"showLegend,omitempty"`
	ShowGrid    *bool            `json:"showGrid,omitempty"`
}
