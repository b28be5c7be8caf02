// Package bridge defines the message vocabulary and transport contract for
// the duplex channel between the embedded web content and the native shell.
//
// The transport guarantees per-direction FIFO delivery while both ends are
// alive. It guarantees nothing about cross-direction interleaving: consumers
// must treat each message type's sequence independently.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Type identifies a bridge message.
type Type string

// Message vocabulary. Direction is fixed per type: shell→content types are
// only ever sent by the shell, content→shell types only by the content.
const (
	// TypeNativeReady (shell→content): the shell transport is initialised
	// and the content may begin sending.
	TypeNativeReady Type = "NATIVE_READY"

	// TypePageLoaded (content→shell): a navigation's content has painted
	// and settled. Payload: PageLoaded.
	TypePageLoaded Type = "PAGE_LOADED"

	// TypeAppReady (content→shell): the loading overlay may be dismissed
	// for the current or any prior navigation.
	TypeAppReady Type = "APP_READY"

	// TypeDeepLink (shell→content): request an in-content navigation.
	// Payload: DeepLink.
	TypeDeepLink Type = "DEEP_LINK"

	// TypeDeepLinkAck (content→shell): the content routed in-content;
	// suppresses the shell's reload fallback.
	TypeDeepLinkAck Type = "DEEP_LINK_ACK"

	// TypeNetworkStatus (shell→content): connectivity change, informational.
	// Payload: NetworkStatus.
	TypeNetworkStatus Type = "NETWORK_STATUS"

	// TypeAppState (shell→content): shell lifecycle change. Payload: AppState.
	TypeAppState Type = "APP_STATE"

	// TypeThemeChange (shell→content): shell-driven theme override.
	// Payload: ThemeChange.
	TypeThemeChange Type = "THEME_CHANGE"

	// TypePushToken (content→shell): registration token for out-of-band
	// delivery. Payload: PushToken.
	TypePushToken Type = "PUSH_TOKEN"
)

// Message is a single transient bridge frame. Payload is nil for types that
// carry none (NATIVE_READY, APP_READY, DEEP_LINK_ACK).
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PageLoaded is the PAGE_LOADED payload.
type PageLoaded struct {
	Route string `json:"route"`
	Title string `json:"title"`
}

// DeepLink is the DEEP_LINK payload.
type DeepLink struct {
	Path string `json:"path"`
}

// NetworkStatus is the NETWORK_STATUS payload.
type NetworkStatus struct {
	IsConnected bool `json:"isConnected"`
}

// App lifecycle states carried by APP_STATE.
const (
	StateActive     = "active"
	StateBackground = "background"
)

// AppState is the APP_STATE payload.
type AppState struct {
	State string `json:"state"`
}

// ThemeChange is the THEME_CHANGE payload.
type ThemeChange struct {
	Mode string `json:"mode"`
}

// PushToken is the PUSH_TOKEN payload.
type PushToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// New builds a Message of the given type with a JSON-encoded payload.
// A nil payload produces a payload-less message.
func New(t Type, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("bridge: marshal %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: data}, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("bridge: %s has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("bridge: decode %s payload: %w", m.Type, err)
	}
	return nil
}
