package export

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"xfive/internal/tournament"
)

var (
	barColor       = drawing.ColorFromHex("3b82f6")
	qualifierColor = drawing.ColorFromHex("f59e0b")
	textColor      = drawing.ColorFromHex("1f2937")
)

// RoomChart renders a PNG bar chart of the effective totals in room, highest first.
// Qualifying rows are drawn in the accent colour.
func RoomChart(snap tournament.Snapshot, room tournament.Room) ([]byte, error) {
	rows := snap.Standings(room)

	bars := make([]chart.Value, 0, len(rows))
	top := 1.0
	for _, s := range rows {
		color := barColor
		if s.Qualifying {
			color = qualifierColor
		}
		bars = append(bars, chart.Value{
			Label: s.Player.DisplayName(),
			Value: float64(s.Total),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
		top = max(top, float64(s.Total))
	}
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Label: "No players", Value: 0})
	}

	graph := chart.BarChart{
		Title:    "Room " + string(room),
		Width:    max(400, 90*len(bars)),
		Height:   400,
		BarWidth: 50,
		TitleStyle: chart.Style{
			FontColor: textColor,
		},
		XAxis: chart.Style{FontColor: textColor},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor},
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render chart for room %s: %w", room, err)
	}
	return buf.Bytes(), nil
}
