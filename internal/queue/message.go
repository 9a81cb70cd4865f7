package queue

import "encoding/json"

// MessageVersion is the current payload schema version.
const MessageVersion = 1

// Message is the ingestion request carried by the queue. It is sent once an
// upload completes.
type Message struct {
	OwnerID    string `json:"ownerId"`
	StorageKey string `json:"storageKey"`
	FileName   string `json:"fileName"`
	SourceURL  string `json:"sourceUrl"`
	Tier       string `json:"tier"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
