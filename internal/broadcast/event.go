package broadcast

import "time"

// Event types.
const (
	TypeStatus    = "status"
	TypeHeartbeat = "heartbeat"
)

// Event is the wire shape delivered to observers. Heartbeats carry only
// Type and Timestamp.
type Event struct {
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
	VideoID    int64  `json:"video_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Progress   int    `json:"progress,omitempty"`
}

// StatusEvent builds a status change event for a video.
func StatusEvent(videoID int64, externalID, status, message string) Event {
	return Event{
		Type:       TypeStatus,
		VideoID:    videoID,
		ExternalID: externalID,
		Status:     status,
		Message:    message,
	}
}

func heartbeat(now time.Time) Event {
	return Event{Type: TypeHeartbeat, Timestamp: now.UTC().Format(time.RFC3339)}
}
