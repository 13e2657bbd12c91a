package facilitator

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/types"
)

// MaxBodyBytes caps request bodies at 10 MiB.
const MaxBodyBytes = 10 << 20

const (
	verifyTimeout = 30 * time.Second
	settleTimeout = 60 * time.Second
)

// Server exposes the facilitator over HTTP.
type Server struct {
	facilitator *Facilitator
	log         logger.Logger
}

// NewServer wraps a facilitator with its HTTP surface.
func NewServer(f *Facilitator, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Server{facilitator: f, log: log}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.bodyLimit(), s.requestLog())

	r.GET("/health", s.handleHealth)
	r.GET("/supported", s.handleSupported)
	r.POST("/verify", s.handleVerify)
	r.POST("/settle", s.handleSettle)
	r.GET("/transaction/:signature", s.handleTransaction)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func (s *Server) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request", map[string]any{
			"requestID": c.GetString("requestID"),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.facilitator.Supported())
}

// handleVerify returns 200 even for invalid payments; the body carries the
// verdict. 400 is reserved for malformed request bodies.
func (s *Server) handleVerify(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), verifyTimeout)
	defer cancel()

	c.JSON(http.StatusOK, s.facilitator.Verify(ctx, &req))
}

func (s *Server) handleSettle(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), settleTimeout)
	defer cancel()

	c.JSON(http.StatusOK, s.facilitator.Settle(ctx, &req))
}

func (s *Server) handleTransaction(c *gin.Context) {
	network := types.Network(c.Query("network"))
	if !network.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": types.ErrUnsupportedNetwork.Message()})
		return
	}

	status, err := s.facilitator.TransactionStatus(c.Request.Context(), network, c.Param("signature"))
	if err != nil {
		var perr *types.PaymentError
		if errors.As(err, &perr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": types.ErrChainRPC.Message()})
		return
	}

	c.JSON(http.StatusOK, status)
}
