package tournament

import "context"

// Store is the persistence collaborator. Implementations return an error wrapping ErrNotFound
// for absent ids and must not retain or share slices/maps handed to or returned from them.
type Store interface {
	ListPlayers(ctx context.Context) ([]Player, error)
	GetPlayer(ctx context.Context, id string) (Player, error)
	CreatePlayer(ctx context.Context, p Player) error
	UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error
	DeletePlayer(ctx context.Context, id string) error

	// GetAppState returns the singleton, creating it with DefaultAppState on first access.
	GetAppState(ctx context.Context) (AppState, error)
	UpdateAppState(ctx context.Context, u AppStateUpdate) error

	ListWheelModes(ctx context.Context) ([]WheelMode, error)
	SaveWheelMode(ctx context.Context, m WheelMode) error
	DeleteWheelMode(ctx context.Context, id string) error
}

// Transactor is implemented by stores that can apply several writes atomically.
// fn receives a Store bound to the transaction; returning an error rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Topic names a class of change notification.
type Topic string

const (
	TopicPlayers Topic = "players"
	TopicState   Topic = "state"
	TopicModes   Topic = "modes"
)

// Topics lists every change topic.
var Topics = []Topic{TopicPlayers, TopicState, TopicModes}

// Snapshot is a point-in-time view of the whole tournament.
type Snapshot struct {
	Players []Player
	State   AppState
	Modes   []WheelMode
}

// Room returns the ranked players of room.
func (s Snapshot) Room(room Room) []Player {
	return RankRoom(s.Players, room)
}

// Standings returns the annotated leaderboard of room.
func (s Snapshot) Standings(room Room) []Standing {
	return Standings(s.Players, room)
}

// WithEffects returns the players currently holding a wheel effect.
func (s Snapshot) WithEffects() []Player {
	var out []Player
	for _, p := range s.Players {
		if p.WheelEffect != nil {
			out = append(out, p)
		}
	}
	return out
}
