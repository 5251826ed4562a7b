package auth

import "time"

// User is Auth's own record; the edge core never reads it directly,
// only through the Client contract below.
type User struct {
	UserID       int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Friend is a friend-graph entry, stored symmetrically: adding A↔B
// writes one row (A, B) and one row (B, A), and DeleteFriend removes
// both (spec.md §3's "deletion is bidirectional").
type Friend struct {
	OwnerUserID  int64
	FriendUserID int64
}

// FriendRequestStatus mirrors the pending/accepted/rejected lifecycle
// of a friend request.
type FriendRequestStatus int

const (
	FriendRequestPending FriendRequestStatus = iota
	FriendRequestAccepted
	FriendRequestRejected
)

// FriendRequest is a pending or resolved friend request. RequestID
// historically carries the sender's user_id rather than a separate
// request primary key — see Client.HandleFriendRequest.
type FriendRequest struct {
	FromUserID int64
	ToUserID   int64
	RequestID  string
	Status     FriendRequestStatus
	CreatedAt  time.Time
}

// FriendView is what GetFriendList returns: a friend's identity plus
// their current presence, populated by Client via a PresenceStatus
// lookup so callers never have to know Presence exists (spec.md §4.5).
type FriendView struct {
	UserID   int64
	Username string
	Online   bool
}
