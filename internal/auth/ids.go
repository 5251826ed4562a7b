package auth

import "strconv"

// friendRequestIDFor implements the preserved quirk documented on
// Client.HandleFriendRequest: the wire-level request_id is the
// sender's user_id, not a generated request primary key.
func friendRequestIDFor(fromUserID int64) string {
	return strconv.FormatInt(fromUserID, 10)
}
