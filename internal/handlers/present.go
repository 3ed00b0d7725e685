package handlers

import (
	"strconv"

	"xfive/internal/tournament"
	"xfive/internal/viewmodel"
)

func roomTitle(room tournament.Room) string {
	switch {
	case room == tournament.RoomFinal:
		return "Final"
	case room.IsSemifinal():
		return "Semifinal " + string(room)
	default:
		return "Room " + string(room)
	}
}

func toRow(s tournament.Standing, games int) viewmodel.Row {
	row := viewmodel.Row{
		Rank:       s.Rank,
		ID:         s.Player.ID,
		Name:       s.Player.Name,
		Nick:       s.Player.Nick,
		Room:       string(s.Player.Room),
		Scores:     make([]string, games),
		Total:      s.Total,
		Status:     string(s.Player.Status),
		Qualifying: s.Qualifying && s.Player.Status != tournament.StatusEliminated,
		Eliminated: s.Player.Status == tournament.StatusEliminated,
	}
	for g := range games {
		if g < len(s.Player.Scores) {
			row.Scores[g] = strconv.Itoa(s.Player.Scores[g])
		}
	}
	if e := s.Player.WheelEffect; e != nil {
		row.EffectType = string(e.Type)
		row.Effect = e.Desc
	}
	return row
}

func buildBoard(snap tournament.Snapshot, room tournament.Room, games int) viewmodel.Board {
	standings := snap.Standings(room)
	board := viewmodel.Board{
		Room:       string(room),
		Title:      roomTitle(room),
		StageLabel: snap.State.Stage.Label(),
		Mode:       snap.State.ActiveRoomModes[room],
		Games:      games,
		Rows:       make([]viewmodel.Row, 0, len(standings)),
		Empty:      len(standings) == 0,
	}
	for _, s := range standings {
		board.Rows = append(board.Rows, toRow(s, games))
	}
	return board
}

func roomLinks(current tournament.Room, follow bool) []viewmodel.RoomLink {
	links := make([]viewmodel.RoomLink, 0, len(tournament.Rooms)+1)
	links = append(links, viewmodel.RoomLink{Label: "Live", URL: "/tournament", Active: follow})
	for _, room := range tournament.Rooms {
		links = append(links, viewmodel.RoomLink{
			Room:   string(room),
			Label:  roomTitle(room),
			URL:    "/tournament/room/" + string(room),
			Active: !follow && room == current,
		})
	}
	return links
}

func roomOptions(selected tournament.Room) []viewmodel.Option {
	out := make([]viewmodel.Option, 0, len(tournament.Rooms))
	for _, room := range tournament.Rooms {
		out = append(out, viewmodel.Option{Value: string(room), Label: roomTitle(room), Selected: room == selected})
	}
	return out
}

func stageOptions(selected tournament.Stage) []viewmodel.Option {
	out := make([]viewmodel.Option, 0, len(tournament.Stages))
	for _, st := range tournament.Stages {
		out = append(out, viewmodel.Option{Value: string(st), Label: st.Label(), Selected: st == selected})
	}
	return out
}

func buildDashboard(snap tournament.Snapshot, games int) viewmodel.Dashboard {
	d := viewmodel.Dashboard{
		Title:       "xfive admin",
		StageLabel:  snap.State.Stage.Label(),
		Stages:      stageOptions(snap.State.Stage),
		ViewerRooms: roomOptions(snap.State.ActiveRoomViewer),
		RoomOptions: roomOptions(tournament.Room1),
		Games:       games,
	}
	for _, room := range tournament.Rooms {
		card := viewmodel.AdminRoom{
			Room:  string(room),
			Title: roomTitle(room),
			Mode:  snap.State.ActiveRoomModes[room],
		}
		for _, s := range snap.Standings(room) {
			if s.Player.Status == tournament.StatusEliminated {
				card.Eliminated++
				continue
			}
			row := toRow(s, games)
			cells := make([]viewmodel.ScoreCell, games)
			for g := range games {
				cells[g] = viewmodel.ScoreCell{Game: g, Value: row.Scores[g]}
			}
			card.Players = append(card.Players, viewmodel.AdminPlayer{Row: row, Cells: cells})
		}
		d.Rooms = append(d.Rooms, card)
	}
	for _, m := range snap.Modes {
		d.Modes = append(d.Modes, viewmodel.WheelMode{ID: m.ID, Name: m.Name, Description: m.Description})
	}
	return d
}
