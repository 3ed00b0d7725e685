package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"xfive/internal/tournament"
)

// Player is the players table row.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`
	ID            string                  `bun:"id,pk"`
	Name          string                  `bun:"name,notnull"`
	Nick          string                  `bun:"nick,notnull"`
	Room          string                  `bun:"room,notnull"`
	Scores        []int                   `bun:"scores,array,notnull"`
	TotalScore    int                     `bun:"total_score,notnull"`
	Status        string                  `bun:"status,notnull"`
	WheelEffect   *tournament.WheelEffect `bun:"wheel_effect,type:jsonb,nullzero"`
	CreatedAt     time.Time               `bun:"created_at,notnull,default:current_timestamp"`
}

func (p *Player) toDomain() tournament.Player {
	scores := p.Scores
	if scores == nil {
		scores = []int{}
	}
	return tournament.Player{
		ID:          p.ID,
		Name:        p.Name,
		Nick:        p.Nick,
		Room:        tournament.Room(p.Room),
		Scores:      scores,
		TotalScore:  p.TotalScore,
		Status:      tournament.Status(p.Status),
		WheelEffect: p.WheelEffect,
		CreatedAt:   p.CreatedAt,
	}
}

func playerFromDomain(p tournament.Player) *Player {
	scores := p.Scores
	if scores == nil {
		scores = []int{}
	}
	return &Player{
		ID:          p.ID,
		Name:        p.Name,
		Nick:        p.Nick,
		Room:        string(p.Room),
		Scores:      scores,
		TotalScore:  p.TotalScore,
		Status:      string(p.Status),
		WheelEffect: p.WheelEffect,
		CreatedAt:   p.CreatedAt,
	}
}

// AppState is the single app_state row; ID is always appStateID.
type AppState struct {
	bun.BaseModel    `bun:"table:app_state,alias:s"`
	ID               int               `bun:"id,pk"`
	Stage            string            `bun:"stage,notnull"`
	ActiveRoomViewer string            `bun:"active_room_viewer,notnull"`
	ActiveRoomModes  map[string]string `bun:"active_room_modes,type:jsonb,notnull"`
	UpdatedAt        time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

const appStateID = 1

func (s *AppState) toDomain() tournament.AppState {
	out := tournament.AppState{
		Stage:            tournament.Stage(s.Stage),
		ActiveRoomViewer: tournament.Room(s.ActiveRoomViewer),
		ActiveRoomModes:  make(map[tournament.Room]string, len(s.ActiveRoomModes)),
	}
	for room, mode := range s.ActiveRoomModes {
		out.ActiveRoomModes[tournament.Room(room)] = mode
	}
	return out
}

func appStateFromDomain(s tournament.AppState) *AppState {
	modes := make(map[string]string, len(s.ActiveRoomModes))
	for room, mode := range s.ActiveRoomModes {
		modes[string(room)] = mode
	}
	return &AppState{
		ID:               appStateID,
		Stage:            string(s.Stage),
		ActiveRoomViewer: string(s.ActiveRoomViewer),
		ActiveRoomModes:  modes,
	}
}

// WheelMode is the wheel_modes table row.
type WheelMode struct {
	bun.BaseModel `bun:"table:wheel_modes,alias:m"`
	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name,notnull"`
	Description   string    `bun:"description,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (m *WheelMode) toDomain() tournament.WheelMode {
	return tournament.WheelMode{ID: m.ID, Name: m.Name, Description: m.Description}
}
