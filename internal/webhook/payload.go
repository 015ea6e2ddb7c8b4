package webhook

import (
	"encoding/json"
	"strings"
)

// Provider event types this processor understands. Everything else is
// acknowledged and ignored.
const (
	EventMessagesUpsert   = "messages.upsert"
	EventConnectionUpdate = "connection.update"
)

// ProviderEvent is the inbound gateway payload. The provider has shipped
// several payload generations; every logical field that moved between
// generations is resolved here through one ordered fallback list, so the
// rest of the processor sees a single shape.
type ProviderEvent struct {
	Event        string    `json:"event"`
	Instance     string    `json:"instance"`
	InstanceName string    `json:"instanceName"`
	Data         EventData `json:"data"`
	ServerURL    string    `json:"server_url"`
	APIKey       string    `json:"apikey"`
}

// EventData is the event-specific body.
type EventData struct {
	Key        MessageKey      `json:"key"`
	PushName   string          `json:"pushName"`
	Message    MessageContent  `json:"message"`
	State      string          `json:"state"`
	Connection string          `json:"connection"`
	Raw        json.RawMessage `json:"-"`
}

// MessageKey identifies the message and its sender.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
	SenderPn  string `json:"senderPn"`
}

// MessageContent carries the message body variants we forward.
type MessageContent struct {
	Conversation string          `json:"conversation"`
	ExtendedText json.RawMessage `json:"extendedTextMessage"`
	ImageMessage json.RawMessage `json:"imageMessage"`
	AudioMessage json.RawMessage `json:"audioMessage"`
}

// UnmarshalJSON keeps the raw body around so the forwarded payload carries
// fields this model does not enumerate.
func (d *EventData) UnmarshalJSON(b []byte) error {
	type alias EventData
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = EventData(a)
	d.Raw = append([]byte(nil), b...)
	return nil
}

// ResolveInstanceName resolves the receiving instance's name. Older payloads
// used `instanceName`, current ones `instance`.
func (e ProviderEvent) ResolveInstanceName() string {
	for _, candidate := range []string{e.Instance, e.InstanceName} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// SenderAddress resolves the true sender. `senderPn` wins when present: on
// broadcast and group proxies `remoteJid` points at the proxy, not the person.
func (e ProviderEvent) SenderAddress() string {
	for _, candidate := range []string{e.Data.Key.SenderPn, e.Data.Key.RemoteJID} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// ConnectionState resolves the connectivity value of a connection.update
// event across payload generations.
func (e ProviderEvent) ConnectionState() string {
	for _, candidate := range []string{e.Data.State, e.Data.Connection} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// MessageText returns the plain text body when the message has one.
func (e ProviderEvent) MessageText() string {
	return strings.TrimSpace(e.Data.Message.Conversation)
}
