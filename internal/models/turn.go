package models

import "time"

// ConversationGameMaster names the narrator conversation in turn records. Interrogations use the suspect's name.
const ConversationGameMaster = "game_master"

// TurnRecord is one completed exchange in a game session's audit log. The session is identified by its hash only.
type TurnRecord struct {
	ID           int64     `db:"id"`
	SessionHash  string    `db:"session_hash"`
	Conversation string    `db:"conversation"`
	Player       string    `db:"player"`
	Model        string    `db:"model"`
	CreatedAt    time.Time `db:"created_at"`
}
