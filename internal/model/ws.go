package model

import "encoding/json"

type MessageType string

const (
	MessageTypeSubscribe  MessageType = "subscribe"
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeInsert     MessageType = "insert"
	MessageTypeUpdate     MessageType = "update"
	MessageTypePrintJob   MessageType = "print_job"
	MessageTypeJobStatus  MessageType = "job_status"
)

// TableOrderItems is the only change-feed table the bridge reacts to.
const TableOrderItems = "order_items"

// --- WebSocket Messages ---

type WSMessage struct {
	Type      MessageType     `json:"type"`
	APIKey    string          `json:"api_key,omitempty"`
	Table     string          `json:"table,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
	Job       *PrintJob       `json:"job,omitempty"`
	JobID     string          `json:"job_id,omitempty"`
	Status    JobStatus       `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
}
