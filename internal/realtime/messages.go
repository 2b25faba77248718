package realtime

import "time"

const (
	TypeConnection = "connection"
	TypePing       = "ping"
	TypePong       = "pong"
	TypePayment    = "payment"
	TypePayout     = "payout"
	TypeAccount    = "account"
	TypeError      = "error"
)

// Event is a server-to-client message. Timestamp is unix milliseconds.
type Event struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected,omitempty"`
	Status    string `json:"status,omitempty"`
	JobID     *uint  `json:"jobId,omitempty"`
	JobTitle  string `json:"jobTitle,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func Millis(t time.Time) int64 { return t.UnixMilli() }

func ConnectionEvent(now time.Time) Event {
	return Event{Type: TypeConnection, Connected: true, Timestamp: Millis(now)}
}

func PingEvent(now time.Time) Event {
	return Event{Type: TypePing, Timestamp: Millis(now)}
}

func ErrorEvent(message string) Event {
	return Event{Type: TypeError, Message: message}
}

// inbound is the only client message shape the server looks at.
type inbound struct {
	Type string `json:"type"`
}
