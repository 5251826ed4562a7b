// Package chat implements Chat Persistence: message append, per-pair
// conversation-session bookkeeping, history, and offline drain, backed
// by Postgres through pgx.
package chat

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Consistency selects which pool a read operation is served from.
// Reads that feed user-visible correctness (session drain, recent
// sessions) use Strong; idempotent history browsing may use Eventual.
type Consistency int

const (
	Strong Consistency = iota
	Eventual
)

// Message is one persisted chat message.
type Message struct {
	MsgID      int64
	FromUserID int64
	ToUserID   int64
	Content    []byte
	Timestamp  int64
}

// Session is a conversation-session row, key (OwnerUserID, PeerUserID).
type Session struct {
	OwnerUserID    int64
	PeerUserID     int64
	LastMsgContent []byte
	LastMsgTS      int64
	UnreadCount    int64
}

// Store is Chat Persistence. It holds a primary pool for writes and
// strong reads, and a replica pool for eventual reads. config.Load
// copies the primary settings into an omitted replica config, and the
// process entrypoints pass the same pool for both when the two DSNs are
// identical (single-node auto-detect), so Store itself does not need to
// know whether it is running against one database or two.
type Store struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

func NewStore(primary, replica *pgxpool.Pool) *Store {
	return &Store{primary: primary, replica: replica}
}

func (s *Store) pool(c Consistency) *pgxpool.Pool {
	if c == Eventual && s.replica != nil {
		return s.replica
	}
	return s.primary
}

// SaveMessage appends one message and atomically updates both
// conversation-session rows: the sender's unread resets to 0, the
// receiver's unread increments by 1. msg_id comes from the messages
// table's own identity sequence, never from the edge's snowflake
// generator (see internal/ids).
func (s *Store) SaveMessage(ctx context.Context, from, to int64, content []byte, ts time.Time) (msgID int64, err error) {
	tx, err := s.primary.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tsMillis := ts.UnixMilli()
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (from_user_id, to_user_id, content, ts_millis)
		 VALUES ($1, $2, $3, $4) RETURNING msg_id`,
		from, to, content, tsMillis,
	).Scan(&msgID)
	if err != nil {
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO conversation_sessions (owner_user_id, peer_user_id, last_msg_content, last_msg_ts, unread_count)
		 VALUES ($1, $2, $3, $4, 0)
		 ON CONFLICT (owner_user_id, peer_user_id) DO UPDATE
		   SET last_msg_content = EXCLUDED.last_msg_content,
		       last_msg_ts = EXCLUDED.last_msg_ts,
		       unread_count = 0`,
		from, to, content, tsMillis,
	); err != nil {
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO conversation_sessions (owner_user_id, peer_user_id, last_msg_content, last_msg_ts, unread_count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (owner_user_id, peer_user_id) DO UPDATE
		   SET last_msg_content = EXCLUDED.last_msg_content,
		       last_msg_ts = EXCLUDED.last_msg_ts,
		       unread_count = conversation_sessions.unread_count + 1`,
		to, from, content, tsMillis,
	); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return msgID, nil
}

// GetHistory returns up to limit messages between user and peer in
// ascending chronological order.
func (s *Store) GetHistory(ctx context.Context, c Consistency, user, peer int64, limit int) ([]Message, error) {
	rows, err := s.pool(c).Query(ctx,
		`SELECT msg_id, from_user_id, to_user_id, content, ts_millis FROM messages
		 WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)
		 ORDER BY ts_millis ASC, msg_id ASC
		 LIMIT $3`,
		user, peer, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecentSessions returns every conversation-session row owned by
// user, most-recently-active first. This feeds the friend-list /
// recent-chats UI and is a correctness-sensitive read: always Strong.
func (s *Store) GetRecentSessions(ctx context.Context, user int64) ([]Session, error) {
	rows, err := s.pool(Strong).Query(ctx,
		`SELECT owner_user_id, peer_user_id, last_msg_content, last_msg_ts, unread_count
		 FROM conversation_sessions WHERE owner_user_id = $1
		 ORDER BY last_msg_ts DESC`,
		user,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// GetOfflineMessages returns, for every (user, peer) row with
// unread_count > 0, the latest unread_count messages in that
// conversation, concatenated and ordered chronologically overall. It
// is read-only and does NOT reset unread_count; only AckMessages does
// that (see DESIGN.md's open-question decision on offline drain).
func (s *Store) GetOfflineMessages(ctx context.Context, user int64) ([]Message, error) {
	sessions, err := s.GetRecentSessions(ctx, user)
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, sess := range sessions {
		if sess.UnreadCount <= 0 {
			continue
		}
		rows, err := s.primary.Query(ctx,
			`SELECT msg_id, from_user_id, to_user_id, content, ts_millis FROM (
			   SELECT msg_id, from_user_id, to_user_id, content, ts_millis FROM messages
			   WHERE from_user_id = $1 AND to_user_id = $2
			   ORDER BY ts_millis DESC, msg_id DESC
			   LIMIT $3
			 ) recent ORDER BY ts_millis ASC, msg_id ASC`,
			sess.PeerUserID, sess.OwnerUserID, sess.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		msgs, err := scanMessages(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}

	sortMessagesChronological(out)
	return out, nil
}

// AckMessages resets unread_count to 0 on (user, peer).
func (s *Store) AckMessages(ctx context.Context, user, peer int64) error {
	_, err := s.primary.Exec(ctx,
		`UPDATE conversation_sessions SET unread_count = 0 WHERE owner_user_id = $1 AND peer_user_id = $2`,
		user, peer,
	)
	return err
}
