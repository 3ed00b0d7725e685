package tournament

import "sort"

// RankRoom returns the players in room ordered by effective total, highest first.
// Equal totals keep their order from the input.
func RankRoom(players []Player, room Room) []Player {
	ranked := make([]Player, 0, len(players))
	for _, p := range players {
		if p.Room == room {
			ranked = append(ranked, p)
		}
	}
	totals := make(map[string]int, len(ranked))
	for _, p := range ranked {
		totals[p.ID] = p.EffectiveTotal()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return totals[ranked[i].ID] > totals[ranked[j].ID]
	})
	return ranked
}

// Standing is one leaderboard row.
type Standing struct {
	Rank       int
	Player     Player
	Total      int
	Qualifying bool
}

// QualifyCount is how many top rows are highlighted as advancing in room.
// The final room highlights only the champion.
func QualifyCount(room Room) int {
	switch {
	case room == RoomFinal:
		return 1
	case room.IsSemifinal():
		return 3
	}
	return 2
}

// Standings ranks room and annotates each row with its rank and qualifying flag.
func Standings(players []Player, room Room) []Standing {
	ranked := RankRoom(players, room)
	cut := QualifyCount(room)
	out := make([]Standing, 0, len(ranked))
	for i, p := range ranked {
		out = append(out, Standing{
			Rank:       i + 1,
			Player:     p,
			Total:      p.EffectiveTotal(),
			Qualifying: i < cut,
		})
	}
	return out
}
