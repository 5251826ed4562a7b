// Command presence runs the Presence Service as its own process
// (spec.md §4.3), exposing Login/Logout/GetStatus over a small
// authenticated REST surface for callers other than the gateway
// (which links internal/presence in-process — see cmd/gateway's
// package doc). It shares the same Redis instance as the gateway's
// presence store, since presence correctness depends on shared
// storage, not on which process issued the call. It has no local
// WebSocket sessions of its own, so a login/logout driven through
// this REST surface only flips the shared online flag; edges observe
// the change on their own next GetStatus batch call rather than
// receiving a live STATUS_UPDATE push from here.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ppchat/edgecore/internal/auth"
	"github.com/ppchat/edgecore/internal/config"
	"github.com/ppchat/edgecore/internal/logging"
	"github.com/ppchat/edgecore/internal/presence"
)

type noFriends struct{}

func (noFriends) FriendIDs(ctx context.Context, userID int64) ([]int64, error) { return nil, nil }

type noBroadcast struct{}

func (noBroadcast) SendToUser(ctx context.Context, userID int64, frameBytes []byte) error {
	return nil
}

func main() {
	cfg, err := config.Load(os.Getenv("EDGE_CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	logger := logging.New(logging.Options{Development: cfg.LogDevelopment})
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr(), PoolSize: cfg.Cache.PoolSize})
	svc := presence.NewService(presence.NewStore(rdb), noFriends{}, noBroadcast{}, 0)
	verifier := auth.NewClient(nil, auth.NewTokenStore(rdb, cfg.TokenTTL), nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	authed := r.Group("/", auth.GinMiddleware(verifier.VerifyToken))
	authed.POST("/login", func(c *gin.Context) { handleLifecycle(c, svc.Login) })
	authed.POST("/logout", func(c *gin.Context) { handleLifecycle(c, svc.Logout) })
	authed.GET("/status", func(c *gin.Context) { handleStatus(c, svc) })

	addr := fmt.Sprintf(":%d", cfg.PresencePort)
	logger.Sugar().Infow("presence service listening", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatal(err.Error())
	}
}

func handleLifecycle(c *gin.Context, fn func(context.Context, int64) ([]int64, error)) {
	userID, _ := auth.UserID(c)
	onlineFriendIDs, err := fn(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online_friend_ids": onlineFriendIDs})
}

func handleStatus(c *gin.Context, svc *presence.Service) {
	raw := c.QueryArray("user_id")
	userIDs := make([]int64, 0, len(raw))
	for _, s := range raw {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			userIDs = append(userIDs, n)
		}
	}
	status, err := svc.GetStatus(c.Request.Context(), userIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
