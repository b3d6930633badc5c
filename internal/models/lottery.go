package models

// Participant is a single trimmed, non-empty name from the participant list.
// Names are not unique; duplicates are drawn independently.
type Participant = string

// DrawConfig holds the validated inputs of one draw.
// The order of Participants is the shuffle input order.
type DrawConfig struct {
	Participants []Participant
	Seed         string
	WinnerCount  int
	AllowRepeat  bool // false: winners are removed from the pool after the draw
	PrizeLabel   string
}

// DrawRecord is one history entry. It is never modified after creation.
type DrawRecord struct {
	Prize       string        `json:"prize"`
	Seed        string        `json:"seed"`
	Date        string        `json:"date"`
	Winners     []Participant `json:"winners"`
	AllowRepeat bool          `json:"allowRepeat"`
}

// Theme is the persisted color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
