package models

// ChatReply is the answer to one chat turn. Fallback marks the canned reply
// served when the backend could not answer.
type ChatReply struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}
