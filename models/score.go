package models

// Checkpoint labels in quarter mode.
const (
	CheckpointQ1    = "Q1"
	CheckpointHalf  = "Half"
	CheckpointQ3    = "Q3"
	CheckpointFinal = "Final"

	// LabelEvent marks a score-change event in event payout modes.
	LabelEvent = "event"
)

// CheckpointOrder is the required processing sequence in quarter mode.
var CheckpointOrder = []string{CheckpointQ1, CheckpointHalf, CheckpointQ3, CheckpointFinal}

// CheckpointIndex returns a label's position in the sequence, or -1.
func CheckpointIndex(label string) int {
	for i, l := range CheckpointOrder {
		if l == label {
			return i
		}
	}
	return -1
}

// GameStatus is the feed's pre/in/post game state.
type GameStatus string

const (
	GamePre  GameStatus = "pre"
	GameIn   GameStatus = "in"
	GamePost GameStatus = "post"
)

// ScoreUpdate is the shape delivered by the external score feed: cumulative
// scores, a checkpoint label or event marker, and the game status. Delivery
// is at-least-once, so processing keys on (pool, label) for idempotency.
type ScoreUpdate struct {
	Home   int        `json:"home" binding:"min=0"`
	Away   int        `json:"away" binding:"min=0"`
	Label  string     `json:"label"`
	Status GameStatus `json:"status"`
}

// IsEvent reports whether the update is a score-change event rather than a
// quarter checkpoint.
func (u ScoreUpdate) IsEvent() bool {
	return u.Label == LabelEvent || u.Label == ""
}
