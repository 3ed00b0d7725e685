// Package export moves tournament data in and out of spreadsheets, charts and object storage.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"xfive/internal/tournament"
)

// RosterEntry is one player row of an imported roster.
type RosterEntry struct {
	Row  int
	Name string
	Nick string
	Room tournament.Room
}

// ParseRoster reads the first sheet of an XLSX roster. The header row must name the columns
// "name" and "room"; "nick" is optional. Blank rows are skipped.
func ParseRoster(r io.Reader) ([]RosterEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	cols := map[string]int{"name": -1, "nick": -1, "room": -1}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[key]; ok {
			cols[key] = i
		}
	}
	if cols["name"] < 0 || cols["room"] < 0 {
		return nil, fmt.Errorf("roster header must contain name and room columns")
	}

	var out []RosterEntry
	for i, row := range rows[1:] {
		rowNum := i + 2
		name := cell(row, cols["name"])
		roomRaw := cell(row, cols["room"])
		if name == "" && roomRaw == "" {
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("row %d: %w", rowNum, tournament.ErrEmptyName)
		}
		room, err := tournament.ParseRoom(roomRaw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		out = append(out, RosterEntry{Row: rowNum, Name: name, Nick: cell(row, cols["nick"]), Room: room})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
