// Command chat runs Chat Persistence as its own process (spec.md
// §4.4), exposing GetHistory/GetRecentSessions/AckMessages over a small
// authenticated REST surface; messages are saved only by the gateway. Like cmd/presence, this is
// a separate binary sharing the same Postgres the gateway's in-process
// chat.Store also writes to (see cmd/gateway's package doc for why the
// gateway does not call this process over the network).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ppchat/edgecore/internal/auth"
	"github.com/ppchat/edgecore/internal/chat"
	"github.com/ppchat/edgecore/internal/config"
	"github.com/ppchat/edgecore/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("EDGE_CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	logger := logging.New(logging.Options{Development: cfg.LogDevelopment})
	defer logger.Sync()

	ctx := context.Background()
	primaryPool, err := pgxpool.New(ctx, cfg.PrimaryDB.DSN())
	if err != nil {
		logger.Fatal("connect primary db: " + err.Error())
	}
	replicaPool := primaryPool
	if cfg.ReplicaDB.DSN() != cfg.PrimaryDB.DSN() {
		replicaPool, err = pgxpool.New(ctx, cfg.ReplicaDB.DSN())
		if err != nil {
			logger.Fatal("connect replica db: " + err.Error())
		}
	}
	store := chat.NewStore(primaryPool, replicaPool)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr(), PoolSize: cfg.Cache.PoolSize})
	verifier := auth.NewClient(nil, auth.NewTokenStore(rdb, cfg.TokenTTL), nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	authed := r.Group("/", auth.GinMiddleware(verifier.VerifyToken))
	authed.GET("/history", func(c *gin.Context) { handleHistory(c, store) })
	authed.GET("/sessions", func(c *gin.Context) { handleSessions(c, store) })
	authed.POST("/ack", func(c *gin.Context) { handleAck(c, store) })

	addr := fmt.Sprintf(":%d", cfg.ChatPort)
	logger.Sugar().Infow("chat service listening", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatal("http server failed: " + err.Error())
	}
}

func handleHistory(c *gin.Context, store *chat.Store) {
	userID, _ := auth.UserID(c)
	peer, err := strconv.ParseInt(c.Query("peer"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid peer"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := store.GetHistory(c.Request.Context(), chat.Eventual, userID, peer, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func handleSessions(c *gin.Context, store *chat.Store) {
	userID, _ := auth.UserID(c)
	sessions, err := store.GetRecentSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func handleAck(c *gin.Context, store *chat.Store) {
	userID, _ := auth.UserID(c)
	peer, err := strconv.ParseInt(c.Query("peer"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid peer"})
		return
	}
	if err := store.AckMessages(c.Request.Context(), userID, peer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ack failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acked_at": time.Now().UnixMilli()})
}
