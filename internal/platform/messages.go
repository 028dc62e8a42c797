// Package platform defines the wire protocol spoken with the remote
// tabletop platform's game log feed: JSON envelopes discriminated by an
// eventType tag, plus the outbound authenticate/subscribe messages.
package platform

import "encoding/json"

// Inbound event type tags. Everything else on the feed is logged and
// dropped by the transport.
const (
	EventAuthenticated            = "authenticated"
	EventRollFulfilled            = "dice/roll/fulfilled"
	EventCharacterUpdate          = "character-sheet/character-update"
	EventCharacterUpdateFulfilled = "character-sheet/character-update/fulfilled"
)

// Outbound message types
const (
	MessageTypeAuthenticate = "authenticate"
	MessageTypeSubscribe    = "subscribe"
)

// Envelope is one inbound game log message. Data stays raw until a
// consumer re-discriminates on EventType.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	GameID    string          `json:"gameId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// AuthenticateMessage is the first outbound message after the socket
// opens.
type AuthenticateMessage struct {
	Type string           `json:"type"`
	Data AuthenticateData `json:"data"`
}

// AuthenticateData carries the short-lived credential and campaign scope.
type AuthenticateData struct {
	Token      string `json:"token"`
	CampaignID string `json:"campaignId"`
}

// NewAuthenticate builds an authenticate message
func NewAuthenticate(token, campaignID string) *AuthenticateMessage {
	return &AuthenticateMessage{
		Type: MessageTypeAuthenticate,
		Data: AuthenticateData{Token: token, CampaignID: campaignID},
	}
}

// SubscribeMessage asks the feed to start delivering one event stream.
type SubscribeMessage struct {
	Type string        `json:"type"`
	Data SubscribeData `json:"data"`
}

// SubscribeData names the event stream and campaign to subscribe to.
type SubscribeData struct {
	Event      string `json:"event"`
	CampaignID string `json:"campaignId"`
}

// NewSubscribe builds a subscribe message
func NewSubscribe(event, campaignID string) *SubscribeMessage {
	return &SubscribeMessage{
		Type: MessageTypeSubscribe,
		Data: SubscribeData{Event: event, CampaignID: campaignID},
	}
}

// SubscribedEvents is the set of streams requested after authentication.
var SubscribedEvents = []string{
	EventRollFulfilled,
	EventCharacterUpdate,
	EventCharacterUpdateFulfilled,
}
