package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pressline/encoderd/internal/s7"
	"go.uber.org/zap"
)

// POST /api/v1/auth/token
func (s *Server) exchangeToken(c *gin.Context) {
	var req struct {
		MachineToken string `json:"machine_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, err := s.authService.ExchangeToken(req.MachineToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid machine token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "Bearer",
	})
}

// GET /api/v1/position
func (s *Server) getPosition(c *gin.Context) {
	reading, ok := s.lm.Monitor().Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading captured yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"register":  s.lm.Config().Register.Name,
		"value":     reading.Value,
		"timestamp": reading.Timestamp,
	})
}

// GET /api/v1/position/history?limit=100&since=2026-08-31T00:00:00Z
func (s *Server) getPositionHistory(c *gin.Context) {
	store := s.lm.Storage()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage not configured"})
		return
	}

	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp, want RFC 3339"})
			return
		}
		records, err := store.ReadingsSince(c.Request.Context(), since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"readings": records, "count": len(records)})
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 10000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 10000"})
			return
		}
		limit = parsed
	}

	records, err := store.RecentReadings(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"readings": records, "count": len(records)})
}

// GET /api/v1/sessions/:id
func (s *Server) getSession(c *gin.Context) {
	store := s.lm.Storage()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := store.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// GET /api/v1/status
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}

// POST /api/v1/monitor/start
func (s *Server) startMonitor(c *gin.Context) {
	if s.lm.Monitor().IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "monitor already running"})
		return
	}

	if err := s.lm.StartMonitoring(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "monitor started",
		"session_id": s.lm.Monitor().SessionID(),
	})
}

// POST /api/v1/monitor/stop
func (s *Server) stopMonitor(c *gin.Context) {
	if !s.lm.Monitor().IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "monitor not running"})
		return
	}

	if err := s.lm.StopMonitoring(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "monitor stopped",
		"stats":   s.lm.Monitor().Stats(),
	})
}

// POST /api/v1/read performs a one-shot read, either of a named register
// from a profile or of an explicit (block, offset, length) triple.
func (s *Server) readOnce(c *gin.Context) {
	var req struct {
		Profile  string `json:"profile"`
		Register string `json:"register"`
		Block    int    `json:"block"`
		Offset   int    `json:"offset"`
		Length   int    `json:"length"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var addr s7.RegisterAddress
	switch {
	case req.Profile != "" && req.Register != "":
		profile, err := s.lm.Profiles().Load(req.Profile)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		reg, ok := profile.Lookup(req.Register)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "register not found in profile"})
			return
		}
		addr = reg.Address()
	case req.Length > 0:
		addr = s7.RegisterAddress{Block: req.Block, Offset: req.Offset, Length: req.Length}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "specify profile+register or block/offset/length"})
		return
	}

	mon := s.lm.Config().Monitor
	reading, err := s.lm.Client().ReadWithRetry(c.Request.Context(), addr, mon.MaxRetries, mon.RetryDelay)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, s7.ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("One-shot read failed",
			zap.Int("block", addr.Block),
			zap.Int("offset", addr.Offset),
			zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"block":     addr.Block,
		"offset":    addr.Offset,
		"value":     reading.Value,
		"timestamp": reading.Timestamp,
	})
}
