package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyStateUpdate      NotificationType = "stateUpdate"
	NotifyQuestProgress    NotificationType = "quest_progress"
	NotifyQuestCompleted   NotificationType = "quest_completed"
	NotifyLifeEventQuest   NotificationType = "lifeevent_quest"
	NotifyFeedPost         NotificationType = "feed_post"
	NotifyAnalysisUpdate   NotificationType = "analysis_update"
	NotifyChatMessage      NotificationType = "chat_message"
	NotifyUpdateBackground NotificationType = "updateBackground"
)

// Notification is one outbound event. Payload is any JSON-encodable value.
type Notification struct {
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"ts"`
	Payload   any              `json:"payload,omitempty"`
}

// ChatMessage is a companion-initiated line shown in the chat stream.
type ChatMessage struct {
	Who  string `json:"who"`
	Text string `json:"text"`
	Kind string `json:"cls"`
}

// FeedPost is the social-feed rendition of a life event.
type FeedPost struct {
	EventID  uuid.UUID `json:"event_id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	Likes    int       `json:"likes"`
	Comments []string  `json:"comments"`
	PostedAt time.Time `json:"posted_at"`
}

// QuestCard announces an active life event and its goal.
type QuestCard struct {
	ID           uuid.UUID           `json:"id"`
	Event        string              `json:"event"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Goal         Goal                `json:"goal"`
	Progress     int                 `json:"progress"`
	Status       EventStatus         `json:"status"`
	Reward       Reward              `json:"reward"`
	Timeout      time.Duration       `json:"timeout,omitempty"`
	Effects      map[Channel]float64 `json:"effects,omitempty"`
	OverrideTone string              `json:"override_tone,omitempty"`
}
