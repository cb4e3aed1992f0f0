package domain

import "time"

// SystemAuthor marks messages synthesized by the relay itself.
const SystemAuthor = "System"

// Message is one entry of a room's ordered chat log. System messages for
// join/leave/slot changes share the same log as user messages.
type Message struct {
	Author    string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ConnID    SessionID `json:"-"`
	System    bool      `json:"isSystem,omitempty"`
}

func NewMessage(sid SessionID, author, text string) Message {
	return Message{
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
		ConnID:    sid,
	}
}

func NewSystemMessage(text string) Message {
	return Message{
		Author:    SystemAuthor,
		Text:      text,
		Timestamp: time.Now(),
		System:    true,
	}
}
