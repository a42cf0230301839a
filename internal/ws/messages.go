// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines the structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/goalstake/engine/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeGoalEvent MsgType = "goal_event"
	MsgTypeWelcome   MsgType = "welcome"
	MsgTypeError     MsgType = "error"
)

// GoalEventMessage is pushed to a circle's subscribers after every committed
// change to one of its goals. Event is one of the service.Event* names.
type GoalEventMessage struct {
	Type      MsgType         `json:"type"`
	Event     string          `json:"event"`
	CircleID  uuid.UUID       `json:"circle_id"`
	Goal      domain.GoalView `json:"goal"`
	Timestamp time.Time       `json:"timestamp"`
}

// WelcomeMessage confirms the subscription. Wallet is empty for anonymous
// connections; CircleID is the nil UUID when subscribed to everything.
type WelcomeMessage struct {
	Type     MsgType         `json:"type"`
	CircleID uuid.UUID       `json:"circle_id"`
	Wallet   domain.WalletID `json:"wallet,omitempty"`
}

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
