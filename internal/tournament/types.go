package tournament

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Room is one of the fixed buckets players compete in.
type Room string

const (
	Room1     Room = "1"
	Room2     Room = "2"
	Room3     Room = "3"
	Room4     Room = "4"
	Room5     Room = "5"
	Room6     Room = "6"
	RoomA     Room = "A"
	RoomB     Room = "B"
	RoomFinal Room = "FINAL"
)

// Rooms lists every room in display order.
var Rooms = []Room{Room1, Room2, Room3, Room4, Room5, Room6, RoomA, RoomB, RoomFinal}

var (
	// Day1Rooms are the qualifier rooms played on the first day; their top players go to room A.
	Day1Rooms = []Room{Room1, Room2, Room3}
	// Day2Rooms feed room B.
	Day2Rooms = []Room{Room4, Room5, Room6}
	// SemifinalRooms are processed by AdvanceSemis.
	SemifinalRooms = []Room{RoomA, RoomB}
)

// ParseRoom validates a room identifier. Lowercase "final" and "a"/"b" are accepted.
func ParseRoom(s string) (Room, error) {
	r := Room(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoom, s)
	}
	return r, nil
}

func (r Room) Valid() bool {
	return slices.Contains(Rooms, r)
}

func (r Room) IsQualifier() bool {
	return slices.Contains(Day1Rooms, r) || slices.Contains(Day2Rooms, r)
}

func (r Room) IsSemifinal() bool {
	return r == RoomA || r == RoomB
}

// SemifinalFor returns the semifinal room fed by a qualifier room.
func (r Room) SemifinalFor() Room {
	if slices.Contains(Day1Rooms, r) {
		return RoomA
	}
	return RoomB
}

// Status is a player's progression status.
type Status string

const (
	StatusActive     Status = "active"
	StatusQualified  Status = "qualified"
	StatusEliminated Status = "eliminated"
)

// Stage is the tournament phase.
type Stage string

const (
	StageQualifiersDay1 Stage = "QUALIFIERS_D1"
	StageQualifiersDay2 Stage = "QUALIFIERS_D2"
	StageSemifinals     Stage = "SEMIFINALS"
	StageFinals         Stage = "FINALS"
)

// Stages lists the stages in tournament order.
var Stages = []Stage{StageQualifiersDay1, StageQualifiersDay2, StageSemifinals, StageFinals}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Stages, st) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return st, nil
}

// Label is the human form shown on the dashboard ("QUALIFIERS D1").
func (s Stage) Label() string {
	return strings.Replace(string(s), "_", " ", 1)
}

// EffectType names a wheel modifier.
type EffectType string

const (
	EffectNone    EffectType = "NONE"
	EffectReverse EffectType = "REVERSE"
	EffectDouble  EffectType = "DOUBLE"
	EffectBoom    EffectType = "BOOM"
)

// WheelEffect is a scoring modifier assigned by the wheel.
type WheelEffect struct {
	Type  EffectType `json:"type"`
	Value float64    `json:"value"`
	Desc  string     `json:"desc"`
}

// Player is a tournament participant.
//
// TotalScore is a cache of EffectiveTotal(Scores, WheelEffect); every writer that touches Scores
// or WheelEffect writes the recomputed value in the same update.
type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Nick        string       `json:"nick,omitempty"`
	Room        Room         `json:"room"`
	Scores      []int        `json:"scores"`
	TotalScore  int          `json:"totalScore"`
	Status      Status       `json:"status"`
	WheelEffect *WheelEffect `json:"wheelEffect,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// DisplayName prefers the nick.
func (p Player) DisplayName() string {
	if p.Nick != "" {
		return p.Nick
	}
	return p.Name
}

// Clone returns a deep copy.
func (p Player) Clone() Player {
	out := p
	out.Scores = slices.Clone(p.Scores)
	if p.WheelEffect != nil {
		e := *p.WheelEffect
		out.WheelEffect = &e
	}
	return out
}

// WheelMode is a catalog entry for a gameplay variant that can be assigned to a room.
type WheelMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AppState is the singleton tournament configuration.
type AppState struct {
	Stage            Stage           `json:"stage"`
	ActiveRoomViewer Room            `json:"activeRoomViewer"`
	ActiveRoomModes  map[Room]string `json:"activeRoomModes,omitempty"`
}

// DefaultAppState is the state a fresh tournament starts in.
func DefaultAppState() AppState {
	return AppState{
		Stage:            StageQualifiersDay1,
		ActiveRoomViewer: Room1,
		ActiveRoomModes:  map[Room]string{},
	}
}

// Clone returns a deep copy.
func (s AppState) Clone() AppState {
	out := s
	out.ActiveRoomModes = make(map[Room]string, len(s.ActiveRoomModes))
	for k, v := range s.ActiveRoomModes {
		out.ActiveRoomModes[k] = v
	}
	return out
}

// PlayerUpdate is a partial field set for a player. Nil fields are left untouched.
type PlayerUpdate struct {
	Name             *string
	Nick             *string
	Room             *Room
	Scores           *[]int
	TotalScore       *int
	Status           *Status
	WheelEffect      *WheelEffect
	ClearWheelEffect bool
}

// Apply writes the update into p.
func (u PlayerUpdate) Apply(p *Player) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Nick != nil {
		p.Nick = *u.Nick
	}
	if u.Room != nil {
		p.Room = *u.Room
	}
	if u.Scores != nil {
		p.Scores = slices.Clone(*u.Scores)
	}
	if u.TotalScore != nil {
		p.TotalScore = *u.TotalScore
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.ClearWheelEffect {
		p.WheelEffect = nil
	}
	if u.WheelEffect != nil {
		e := *u.WheelEffect
		p.WheelEffect = &e
	}
}

// AppStateUpdate is a partial field set for the app state.
// RoomModes entries with an empty value remove the room's mode.
type AppStateUpdate struct {
	Stage            *Stage
	ActiveRoomViewer *Room
	RoomModes        map[Room]string
}

// Apply writes the update into s.
func (u AppStateUpdate) Apply(s *AppState) {
	if u.Stage != nil {
		s.Stage = *u.Stage
	}
	if u.ActiveRoomViewer != nil {
		s.ActiveRoomViewer = *u.ActiveRoomViewer
	}
	if len(u.RoomModes) > 0 && s.ActiveRoomModes == nil {
		s.ActiveRoomModes = map[Room]string{}
	}
	for room, mode := range u.RoomModes {
		if mode == "" {
			delete(s.ActiveRoomModes, room)
			continue
		}
		s.ActiveRoomModes[room] = mode
	}
}

func ptr[T any](v T) *T { return &v }
