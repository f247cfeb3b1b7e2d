package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewMessage encodes a typed message. Encoding failures yield an error message instead.
func NewMessage(messageType string, payload any) []byte {
	b, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		return NewErrorMessage("failed to encode " + messageType)
	}
	return b
}

// NewErrorMessage builds an error frame for the client.
func NewErrorMessage(text string) []byte {
	b, _ := json.Marshal(Message{Type: "error", Payload: map[string]string{"message": text}})
	return b
}
