package chat

import (
	"sort"

	"github.com/jackc/pgx/v5"
)

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MsgID, &m.FromUserID, &m.ToUserID, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSessions(rows pgx.Rows) ([]Session, error) {
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.OwnerUserID, &s.PeerUserID, &s.LastMsgContent, &s.LastMsgTS, &s.UnreadCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// sortMessagesChronological orders by timestamp then msg_id, matching
// the ordering GetOfflineMessages promises (spec.md §4.4) when
// messages from different peer conversations are concatenated.
func sortMessagesChronological(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].MsgID < msgs[j].MsgID
	})
}
