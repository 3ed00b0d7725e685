package tournament

import "fmt"

const (
	qualifierAdvancing = 2
	semifinalAdvancing = 3
)

// MoveKind says what a progression step does to a player.
type MoveKind string

const (
	MovePromote   MoveKind = "promote"
	MoveEliminate MoveKind = "eliminate"
	// MoveSkip marks a top slot held by an already-eliminated player; it is left alone.
	MoveSkip MoveKind = "skip"
)

// Move is one planned progression write.
type Move struct {
	PlayerID string
	From     Room
	To       Room
	Kind     MoveKind
}

// Update returns the partial write for the move. Promotions reset scores, total and effect.
func (m Move) Update() (PlayerUpdate, bool) {
	switch m.Kind {
	case MovePromote:
		return PlayerUpdate{
			Status:           ptr(StatusQualified),
			Room:             ptr(m.To),
			Scores:           ptr([]int{}),
			TotalScore:       ptr(0),
			ClearWheelEffect: true,
		}, true
	case MoveEliminate:
		return PlayerUpdate{Status: ptr(StatusEliminated)}, true
	}
	return PlayerUpdate{}, false
}

// planRoom ranks room and splits it into the top advancing slots and the rest.
func planRoom(players []Player, room, target Room, advancing int) []Move {
	ranked := RankRoom(players, room)
	moves := make([]Move, 0, len(ranked))
	for i, p := range ranked {
		m := Move{PlayerID: p.ID, From: room, To: room, Kind: MoveEliminate}
		if i < advancing {
			m.Kind = MovePromote
			m.To = target
			if p.Status == StatusEliminated {
				m.Kind = MoveSkip
				m.To = room
			}
		}
		moves = append(moves, m)
	}
	return moves
}

// PlanQualifiers computes the moves for closing the given qualifier rooms: the top two of each
// room go to A (rooms 1-3) or B (rooms 4-6), everyone else in the room is eliminated.
func PlanQualifiers(players []Player, dayRooms []Room) ([]Move, error) {
	var moves []Move
	for _, room := range dayRooms {
		if !room.IsQualifier() {
			return nil, fmt.Errorf("%w: %s is not a qualifier room", ErrInvalidRoom, room)
		}
		moves = append(moves, planRoom(players, room, room.SemifinalFor(), qualifierAdvancing)...)
	}
	return moves, nil
}

// PlanSemis computes the moves for closing rooms A and B: top three go to FINAL.
func PlanSemis(players []Player) []Move {
	var moves []Move
	for _, room := range SemifinalRooms {
		moves = append(moves, planRoom(players, room, RoomFinal, semifinalAdvancing)...)
	}
	return moves
}

// ProgressionReport summarizes an applied progression.
type ProgressionReport struct {
	Promoted   []string
	Eliminated []string
	Skipped    []string
}

func (r *ProgressionReport) record(m Move) {
	switch m.Kind {
	case MovePromote:
		r.Promoted = append(r.Promoted, m.PlayerID)
	case MoveEliminate:
		r.Eliminated = append(r.Eliminated, m.PlayerID)
	case MoveSkip:
		r.Skipped = append(r.Skipped, m.PlayerID)
	}
}
