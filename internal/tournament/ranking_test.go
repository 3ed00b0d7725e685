package tournament

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func ids(players []Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}

func TestRankRoom_StableOnTies(t *testing.T) {
	players := []Player{
		{ID: "Z", Room: Room1, Scores: []int{5}},
		{ID: "X", Room: Room1, Scores: []int{10}},
		{ID: "Y", Room: Room1, Scores: []int{10}},
	}
	got := ids(RankRoom(players, Room1))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, got); diff != "" {
		t.Errorf("RankRoom mismatch (-want +got):\n%s", diff)
	}
}

func TestRankRoom_UsesEffectiveTotalAndFiltersRoom(t *testing.T) {
	players := []Player{
		{ID: "raw", Room: Room2, Scores: []int{50}},
		{ID: "doubled", Room: Room2, Scores: []int{20, 20}, WheelEffect: &DoubleChance},
		{ID: "other", Room: Room3, Scores: []int{999}},
		// A stale cache must not influence ordering.
		{ID: "stale", Room: Room2, Scores: []int{1}, TotalScore: 1000},
	}
	assert.Equal(t, []string{"doubled", "raw", "stale"}, ids(RankRoom(players, Room2)))
	assert.Empty(t, RankRoom(players, RoomFinal))
}

func TestQualifyCount(t *testing.T) {
	tests := []struct {
		room Room
		want int
	}{
		{Room1, 2},
		{Room6, 2},
		{RoomA, 3},
		{RoomB, 3},
		{RoomFinal, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualifyCount(tt.room), "room %s", tt.room)
	}
}

func TestStandings(t *testing.T) {
	players := []Player{
		{ID: "a", Room: RoomA, Scores: []int{1}},
		{ID: "b", Room: RoomA, Scores: []int{4}},
		{ID: "c", Room: RoomA, Scores: []int{3}},
		{ID: "d", Room: RoomA, Scores: []int{2}},
	}
	rows := Standings(players, RoomA)
	assert.Len(t, rows, 4)
	assert.Equal(t, []string{"b", "c", "d", "a"}, []string{rows[0].Player.ID, rows[1].Player.ID, rows[2].Player.ID, rows[3].Player.ID})
	for i, r := range rows {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, i < 3, r.Qualifying, "row %d", i)
	}
	assert.Equal(t, 4, rows[0].Total)
}

func TestStandings_FinalHighlightsChampion(t *testing.T) {
	players := []Player{
		{ID: "a", Room: RoomFinal, Scores: []int{10}},
		{ID: "b", Room: RoomFinal, Scores: []int{30}},
		{ID: "c", Room: RoomFinal, Scores: []int{20}},
		{ID: "q", Room: Room1, Scores: []int{5}},
	}
	rows := Standings(players, RoomFinal)
	assert.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].Player.ID)
	assert.True(t, rows[0].Qualifying)
	assert.False(t, rows[1].Qualifying)
	assert.False(t, rows[2].Qualifying)
}
