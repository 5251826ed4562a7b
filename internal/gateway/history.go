package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppchat/edgecore/internal/auth"
	"github.com/ppchat/edgecore/internal/chat"
)

// historyReader is the slice of Chat Persistence the REST "load more"
// endpoint needs (spec.md §4.4's GetHistory, exposed here as the
// original's "load more" REST call rather than a new frame type).
type historyReader interface {
	GetHistory(ctx context.Context, c chat.Consistency, user, peer int64, limit int) ([]chat.Message, error)
}

type sessionLister interface {
	GetRecentSessions(ctx context.Context, user int64) ([]chat.Session, error)
}

const defaultHistoryLimit = 50

// RegisterHistoryRoutes mounts the authenticated REST surface that
// complements the WebSocket protocol: paging through a conversation's
// history and listing a user's recent sessions. History reads go
// through the Eventual-consistency replica path; the sessions list goes
// through GetRecentSessions, which always reads Strong. Each
// call re-verifies the bearer token via auth.GinMiddleware: a REST
// request isn't tied to an already-authenticated WebSocket session,
// unlike a frame arriving on one.
func (s *Server) RegisterHistoryRoutes(r gin.IRouter, history historyReader, sessions sessionLister) {
	authed := r.Group("/", auth.GinMiddleware(s.auth.VerifyToken))
	authed.GET("/history", func(c *gin.Context) { handleHistory(c, history) })
	authed.GET("/sessions", func(c *gin.Context) { handleSessions(c, sessions) })
}

func handleHistory(c *gin.Context, history historyReader) {
	userID, _ := auth.UserID(c)
	peer, err := strconv.ParseInt(c.Query("peer"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid peer"})
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := history.GetHistory(c.Request.Context(), chat.Eventual, userID, peer, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func handleSessions(c *gin.Context, sessions sessionLister) {
	userID, _ := auth.UserID(c)
	list, err := sessions.GetRecentSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}
