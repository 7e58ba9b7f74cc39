// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumers that move them.
package queue

// CarModeratedEvent is published when an admin approves or rejects a
// listing. It carries enough for downstream consumers to log or notify the
// seller without querying the primary database.
type CarModeratedEvent struct {
    CarID       uint64 `json:"car_id"`
    OwnerID     uint64 `json:"owner_id"`
    AdminID     uint64 `json:"admin_id"`
    AdminName   string `json:"admin_username"`
    Decision    string `json:"decision"` // approved | rejected
    Reason      string `json:"reason,omitempty"`
    Comment     string `json:"comment,omitempty"`
    AdTitle     string `json:"ad_title"`
    ModeratedAt string `json:"moderated_at"`
}

// ChatEvent is a realtime delivery fanned out to every instance. Origin
// lets the publishing instance skip its own copy.
type ChatEvent struct {
    Origin   string `json:"origin"`
    UserID   uint64 `json:"user_id"` // recipient room
    Event    string `json:"event"`
    Data     []byte `json:"data"`
}
