package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"trading-bot/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// healthz is the unauthenticated liveness probe.
func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  string(s.Lifecycle.State()),
	})
}

// status reports the runtime's overall condition.
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":           string(s.Lifecycle.State()),
		"trading_allowed": s.Lifecycle.IsTradingAllowed(),
		"active_pauses":   s.Lifecycle.ActivePauses(),
		"pending_events":  s.Bus.PendingEvents(),
		"meta":            s.Meta,
	})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) rateLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"buckets": s.Limiter.Usage()})
}

// transitionState moves the lifecycle FSM to the requested state.
func (s *Server) transitionState(c *gin.Context) {
	var req struct {
		Target string `json:"target"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&req); err != nil || req.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "target state is required",
		})
		return
	}

	from := s.Lifecycle.State()
	if err := s.Lifecycle.TransitionTo(lifecycle.State(req.Target)); err != nil {
		var ite *lifecycle.InvalidTransitionError
		if errors.As(err, &ite) {
			c.JSON(http.StatusConflict, gin.H{
				"code":  "INVALID_TRANSITION",
				"error": ite.Error(),
				"from":  string(ite.From),
				"to":    string(ite.To),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.DB != nil {
		_ = s.DB.InsertTransition(c.Request.Context(), string(from), req.Target, req.Reason)
	}
	c.JSON(http.StatusOK, gin.H{"state": req.Target})
}

func (s *Server) listTransitions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.DB.ListTransitions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": list})
}

func (s *Server) listPauses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_pauses":   s.Lifecycle.ActivePauses(),
		"trading_allowed": s.Lifecycle.IsTradingAllowed(),
	})
}

func (s *Server) addPause(c *gin.Context) {
	var req struct {
		Reason     string `json:"reason"`
		DurationMs int64  `json:"duration_ms"`
	}
	if err := c.BindJSON(&req); err != nil || req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "reason is required",
		})
		return
	}

	s.Lifecycle.AddTradingPause(req.Reason, time.Duration(req.DurationMs)*time.Millisecond)
	c.JSON(http.StatusOK, gin.H{
		"active_pauses": s.Lifecycle.ActivePauses(),
	})
}

func (s *Server) clearPauses(c *gin.Context) {
	s.Lifecycle.ClearTradingPauses()
	c.JSON(http.StatusOK, gin.H{
		"trading_allowed": s.Lifecycle.IsTradingAllowed(),
	})
}

func (s *Server) listJournal(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	eventType := c.Query("type")
	list, err := s.DB.ListJournal(c.Request.Context(), eventType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list})
}

func (s *Server) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.Sched.Status()})
}
