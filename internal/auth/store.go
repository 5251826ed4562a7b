package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppchat/edgecore/internal/errs"
)

// Store is Auth's own Postgres-backed storage: user accounts, the
// friend graph, and pending friend requests. It is internal to Auth —
// nothing outside this package touches these tables directly.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var userID int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING user_id`,
		username, passwordHash,
	).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT user_id, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, errs.ErrNotFound
	}
	return u, err
}

func (s *Store) UserByID(ctx context.Context, userID int64) (User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT user_id, username, password_hash, created_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, errs.ErrNotFound
	}
	return u, err
}

// AddFriendEdge writes both symmetric rows in one transaction.
func (s *Store) AddFriendEdge(ctx context.Context, a, b int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pair := range [][2]int64{{a, b}, {b, a}} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO friends (owner_user_id, friend_user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			pair[0], pair[1],
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DeleteFriendEdge removes both symmetric rows in one transaction
// (spec.md §3: friend-graph deletion is bidirectional).
func (s *Store) DeleteFriendEdge(ctx context.Context, a, b int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM friends WHERE (owner_user_id = $1 AND friend_user_id = $2) OR (owner_user_id = $2 AND friend_user_id = $1)`,
		a, b,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) FriendIDs(ctx context.Context, owner int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT friend_user_id FROM friends WHERE owner_user_id = $1`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) CreateFriendRequest(ctx context.Context, from, to int64) (requestID string, err error) {
	// requestID carries the sender's user_id by convention, not a
	// separate primary key — preserved from the call sites this was
	// distilled from; downstream code must not assume it is unique
	// across senders.
	requestID = friendRequestIDFor(from)
	_, err = s.db.Exec(ctx,
		`INSERT INTO friend_requests (from_user_id, to_user_id, request_id, status)
		 VALUES ($1, $2, $3, $4)`,
		from, to, requestID, FriendRequestPending,
	)
	return requestID, err
}

func (s *Store) PendingRequestsFor(ctx context.Context, to int64) ([]FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT from_user_id, to_user_id, request_id, status, created_at
		 FROM friend_requests WHERE to_user_id = $1 AND status = $2`,
		to, FriendRequestPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FriendRequest
	for rows.Next() {
		var r FriendRequest
		if err := rows.Scan(&r.FromUserID, &r.ToUserID, &r.RequestID, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ResolveFriendRequest(ctx context.Context, from, to int64, status FriendRequestStatus) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE friend_requests SET status = $3
		 WHERE from_user_id = $1 AND to_user_id = $2 AND status = $4`,
		from, to, status, FriendRequestPending,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
