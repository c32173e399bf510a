package model

import "time"

// MaxMessageLength is counted in characters (runes), after trimming.
const MaxMessageLength = 10000

// Thread is a conversation between exactly two users. PairKey ("low:high")
// keeps a pair from accumulating parallel threads.
type Thread struct {
	ID            string    `json:"id"`
	PairKey       string    `json:"-"`
	MatchID       *string   `json:"matchId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

type ThreadParticipant struct {
	ThreadID   string     `json:"threadId"`
	UserID     string     `json:"userId"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

// Message is append-only. A nil SenderID denotes a system message.
type Message struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"threadId"`
	SenderID  *string    `json:"senderId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	IsEdited  bool       `json:"isEdited"`
}

// ThreadSummary is one row of the inbox.
type ThreadSummary struct {
	ThreadID      string    `json:"threadId"`
	MatchID       *string   `json:"matchId,omitempty"`
	Other         UserCard  `json:"other"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}

// ThreadView is a thread opened by one participant.
type ThreadView struct {
	ThreadID string    `json:"threadId"`
	Other    UserCard  `json:"other"`
	Messages []Message `json:"messages"`
}

// StartThreadResult reports the thread used by a direct message start.
type StartThreadResult struct {
	ThreadID string   `json:"threadId"`
	Created  bool     `json:"created"`
	Message  *Message `json:"message"`
}

// UserCard is the compact public view of a person.
type UserCard struct {
	UserID    string `json:"userId"`
	FullName  string `json:"fullName"`
	Headline  string `json:"headline"`
	AvatarURL string `json:"avatarUrl"`
}
