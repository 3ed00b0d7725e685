package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"xfive/internal/tournament"
)

// SheetName is the worksheet title used for room.
func SheetName(room tournament.Room) string {
	if room == tournament.RoomFinal {
		return "Final"
	}
	return "Room " + string(room)
}

// WriteStandings writes an XLSX workbook with one sheet per non-empty room. Each sheet lists
// rank, name, nick, status, the first games scores, the effective total and the wheel effect.
func WriteStandings(w io.Writer, snap tournament.Snapshot, games int) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	first := true
	for _, room := range tournament.Rooms {
		rows := snap.Standings(room)
		if len(rows) == 0 {
			continue
		}
		sheet := SheetName(room)
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		if err := writeRoomSheet(f, sheet, rows, games, bold); err != nil {
			return err
		}
	}
	if first {
		if err := f.SetSheetName("Sheet1", "Standings"); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRoomSheet(f *excelize.File, sheet string, rows []tournament.Standing, games, headerStyle int) error {
	header := []any{"Rank", "Name", "Nick", "Status"}
	for g := range games {
		header = append(header, "Game "+strconv.Itoa(g+1))
	}
	header = append(header, "Total", "Effect")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %q: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header of %q: %w", sheet, err)
	}

	for i, s := range rows {
		values := []any{s.Rank, s.Player.Name, s.Player.Nick, string(s.Player.Status)}
		for g := range games {
			if g < len(s.Player.Scores) {
				values = append(values, s.Player.Scores[g])
			} else {
				values = append(values, "")
			}
		}
		effect := ""
		if s.Player.WheelEffect != nil {
			effect = s.Player.WheelEffect.Desc
		}
		values = append(values, s.Total, effect)

		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+2, sheet, err)
		}
	}
	return nil
}
