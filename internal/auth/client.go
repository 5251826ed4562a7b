// Package auth implements the Auth external collaborator (spec.md
// §4.5, §6.6): account creation/login, opaque bearer tokens, and the
// friend graph (adds, pending requests, accept/reject, bidirectional
// delete). The edge core only ever talks to this package through
// Client — never to Store or TokenStore directly.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ppchat/edgecore/internal/errs"
)

// PresenceStatus is the subset of the Presence Service Client depends
// on, kept narrow so Auth does not need to know about Presence's RPC
// surface beyond status lookups (spec.md §4.5: "the online field is
// populated by Auth via a Presence GetStatus call, hiding presence
// from callers").
type PresenceStatus interface {
	GetStatus(ctx context.Context, userIDs []int64) (map[int64]bool, error)
}

// Client is the reference implementation of the Auth contract.
type Client struct {
	store    *Store
	tokens   *TokenStore
	presence PresenceStatus
	jwtKey   []byte
}

func NewClient(store *Store, tokens *TokenStore, presence PresenceStatus, jwtSecret []byte) *Client {
	return &Client{store: store, tokens: tokens, presence: presence, jwtKey: jwtSecret}
}

// Register creates an account. Passwords are bcrypt-hashed before
// they ever reach the store; Auth never persists or logs a plaintext
// password.
func (c *Client) Register(ctx context.Context, username, password string) (userID int64, err error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, errs.Internal(err)
	}
	userID, err = c.store.CreateUser(ctx, username, hash)
	if err != nil {
		return 0, errs.ErrAlreadyExists.WithDetail(err.Error())
	}
	return userID, nil
}

// Login verifies credentials and issues a fresh opaque bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (token string, userID int64, err error) {
	u, err := c.store.UserByUsername(ctx, username)
	if err != nil {
		return "", 0, errs.New(errs.CodeUnauthorized, "invalid credentials")
	}
	if !checkPassword(password, u.PasswordHash) {
		return "", 0, errs.New(errs.CodeUnauthorized, "invalid credentials")
	}

	token, err = c.issueToken(u.UserID)
	if err != nil {
		return "", 0, errs.Internal(err)
	}
	if err := c.tokens.Bind(ctx, token, u.UserID); err != nil {
		return "", 0, errs.Internal(err)
	}
	return token, u.UserID, nil
}

// VerifyToken is the only call the Edge Session Manager makes during
// the connect handshake (spec.md §4.1 step 2).
func (c *Client) VerifyToken(ctx context.Context, token string) (userID int64, valid bool, err error) {
	userID, ok, err := c.tokens.Lookup(ctx, token)
	if err != nil {
		return 0, false, err
	}
	return userID, ok, nil
}

// FriendIDs exposes the raw friend-id list for Presence (spec.md
// §4.3 step (b)) without pulling in the rest of the Auth contract.
func (c *Client) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return c.store.FriendIDs(ctx, userID)
}

func (c *Client) AddFriend(ctx context.Context, a, b int64) error {
	return c.store.AddFriendEdge(ctx, a, b)
}

func (c *Client) DeleteFriend(ctx context.Context, a, b int64) error {
	return c.store.DeleteFriendEdge(ctx, a, b)
}

// GetFriendList returns every friend of owner annotated with current
// presence, resolved in one batched Presence.GetStatus call.
func (c *Client) GetFriendList(ctx context.Context, owner int64) ([]FriendView, error) {
	ids, err := c.store.FriendIDs(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	statuses, err := c.presence.GetStatus(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]FriendView, 0, len(ids))
	for _, id := range ids {
		u, err := c.store.UserByID(ctx, id)
		if err != nil {
			continue
		}
		views = append(views, FriendView{UserID: id, Username: u.Username, Online: statuses[id]})
	}
	return views, nil
}

func (c *Client) GetPendingFriendRequests(ctx context.Context, userID int64) ([]FriendRequest, error) {
	return c.store.PendingRequestsFor(ctx, userID)
}

// HandleFriendRequest accepts or rejects a pending request. Preserved
// quirk: the request_id callers pass over the wire is the sender's
// user_id (see friendRequestIDFor), not a dedicated request primary
// key — HandleFriendRequest therefore takes fromUserID directly rather
// than an opaque request handle.
func (c *Client) HandleFriendRequest(ctx context.Context, fromUserID, toUserID int64, accept bool) error {
	status := FriendRequestRejected
	if accept {
		status = FriendRequestAccepted
	}
	if err := c.store.ResolveFriendRequest(ctx, fromUserID, toUserID, status); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound.WithDetail("no pending request from that user")
		}
		return err
	}
	if accept {
		return c.store.AddFriendEdge(ctx, fromUserID, toUserID)
	}
	return nil
}

func (c *Client) RequestFriend(ctx context.Context, fromUserID, toUserID int64) (requestID string, err error) {
	return c.store.CreateFriendRequest(ctx, fromUserID, toUserID)
}

func (c *Client) issueToken(userID int64) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	opaque := hex.EncodeToString(raw)

	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"jti": opaque,
	}
	signed := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := signed.SignedString(c.jwtKey)
	if err != nil {
		return "", err
	}
	return token, nil
}
