// Command gateway runs the Edge Node process (spec.md §4.1): the
// WebSocket edge accepting client connections, persisting and routing
// chat traffic, and driving presence on connect/disconnect. Auth,
// Presence, and Chat Persistence are linked in-process against the
// same shared Redis/Postgres/NATS backing stores rather than called
// over an invented RPC transport — see DESIGN.md's note on process
// topology.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ppchat/edgecore/internal/auth"
	"github.com/ppchat/edgecore/internal/chat"
	"github.com/ppchat/edgecore/internal/config"
	"github.com/ppchat/edgecore/internal/errs"
	"github.com/ppchat/edgecore/internal/gateway"
	"github.com/ppchat/edgecore/internal/ids"
	"github.com/ppchat/edgecore/internal/logging"
	"github.com/ppchat/edgecore/internal/presence"
	"github.com/ppchat/edgecore/internal/routing"
)

// presenceStatusAdapter lets internal/auth depend on Presence through
// its own narrow PresenceStatus interface without importing
// internal/presence directly.
type presenceStatusAdapter struct{ svc *presence.Service }

func (a *presenceStatusAdapter) GetStatus(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	return a.svc.GetStatus(ctx, userIDs)
}

// friendGraphAdapter is the mirror image: internal/presence depends on
// Auth's friend graph through its own FriendGraph interface. Its
// client field is filled in after auth.Client exists, breaking the
// otherwise-circular construction order between Auth and Presence.
type friendGraphAdapter struct{ client *auth.Client }

func (a *friendGraphAdapter) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return a.client.FriendIDs(ctx, userID)
}

func main() {
	cfg, err := config.Load(os.Getenv("EDGE_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Options{Development: cfg.LogDevelopment})
	defer logger.Sync()

	ctx := context.Background()

	primaryPool, err := pgxpool.New(ctx, cfg.PrimaryDB.DSN())
	if err != nil {
		logger.Fatal("connect primary db", zap.Error(err))
	}
	replicaPool := primaryPool
	if cfg.ReplicaDB.DSN() != cfg.PrimaryDB.DSN() {
		replicaPool, err = pgxpool.New(ctx, cfg.ReplicaDB.DSN())
		if err != nil {
			logger.Fatal("connect replica db", zap.Error(err))
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr(), PoolSize: cfg.Cache.PoolSize})

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("connect nats", zap.Error(err))
	}
	defer nc.Close()

	connMgr := gateway.NewConnManager()
	directory := routing.NewDirectory(rdb)
	bus := routing.NewBus(nc)
	router := routing.NewRouter(cfg.GatewayID, directory, bus, connMgr)

	if _, err := bus.Subscribe(cfg.GatewayID, func(userID int64, frameBytes []byte) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("nats delivery panic", zap.Error(errs.Recover(r)))
			}
		}()
		connMgr.DeliverLocal(userID, frameBytes)
	}); err != nil {
		logger.Fatal("subscribe to own edge topic", zap.Error(err))
	}

	presenceStore := presence.NewStore(rdb)
	friends := &friendGraphAdapter{}
	presenceSvc := presence.NewService(presenceStore, friends, router, 0)

	authStore := auth.NewStore(primaryPool)
	tokenStore := auth.NewTokenStore(rdb, cfg.TokenTTL)
	authClient := auth.NewClient(authStore, tokenStore, &presenceStatusAdapter{svc: presenceSvc}, []byte(cfg.JWTSecret))
	friends.client = authClient

	chatStore := chat.NewStore(primaryPool, replicaPool)

	idGen := ids.NewGenerator(gatewayNodeID(cfg.GatewayID))

	dispatcher := gateway.NewDispatcher()
	dispatcher.Register(gateway.NewHeartbeatHandler())
	dispatcher.Register(gateway.NewChatSendHandler(chatStore, router))

	srvCfg := gateway.Config{
		EdgeID:        cfg.GatewayID,
		HeartbeatIdle: cfg.HeartbeatIdle,
		HeartbeatDead: cfg.HeartbeatDead,
	}
	srv, err := gateway.NewServer(srvCfg, connMgr, router, directory, authClient, presenceSvc, chatStore, dispatcher, idGen, 256, logger)
	if err != nil {
		logger.Fatal("construct gateway server", zap.Error(err))
	}
	defer srv.Close()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go srv.StartHeartbeatSweeper(sweepCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	srv.RegisterRoutes(r)
	srv.RegisterHistoryRoutes(r, chatStore, chatStore)

	addr := fmt.Sprintf(":%d", cfg.GatewayPort)
	logger.Sugar().Infow("gateway listening", "addr", addr, "edge_id", cfg.GatewayID)
	if err := r.Run(addr); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// gatewayNodeID derives a small stable node id for the snowflake
// generator from the edge's configured identity, since process
// restarts must not silently collide connection IDs with another live
// edge.
func gatewayNodeID(gatewayID string) int64 {
	var h int64
	for _, c := range gatewayID {
		h = (h*31 + int64(c)) & 0x3FF
	}
	return h
}
