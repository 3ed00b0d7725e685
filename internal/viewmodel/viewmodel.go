package viewmodel

// RoomLink is a tab in the viewer's room switcher.
type RoomLink struct {
	Room   string
	Label  string
	URL    string
	Active bool
}

// Row is one leaderboard line.
type Row struct {
	Rank       int
	ID         string
	Name       string
	Nick       string
	Room       string
	Scores     []string
	Total      int
	Status     string
	Qualifying bool
	Eliminated bool
	EffectType string
	Effect     string
}

// Board holds data for a room leaderboard fragment.
type Board struct {
	Room       string
	Title      string
	StageLabel string
	Mode       string
	Games      int
	Rows       []Row
	Empty      bool
}

// ViewerPage holds data for the public tournament page.
type ViewerPage struct {
	Title     string
	Room      string
	Follow    bool
	Rooms     []RoomLink
	Board     Board
	StreamURL string
	ChartURL  string
	ShareURL  string
	IsAdmin   bool
}

// LoginPage holds data for the admin login form.
type LoginPage struct {
	Title string
	Error string
}

// Option is a select entry.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// ScoreCell is an editable score input on the dashboard.
type ScoreCell struct {
	Game  int
	Value string
}

// AdminPlayer is a player row with its score inputs.
type AdminPlayer struct {
	Row
	Cells []ScoreCell
}

// AdminRoom is a room card on the dashboard.
type AdminRoom struct {
	Room       string
	Title      string
	Mode       string
	Players    []AdminPlayer
	Eliminated int
}

// WheelMode is a catalog entry on the dashboard.
type WheelMode struct {
	ID          string
	Name        string
	Description string
}

// Dashboard holds data for the admin dashboard page.
type Dashboard struct {
	Title          string
	Admin          string
	Flash          string
	StageLabel     string
	Stages         []Option
	ViewerRooms    []Option
	RoomOptions    []Option
	Rooms          []AdminRoom
	Modes          []WheelMode
	Games          int
	ArchiveEnabled bool
}
