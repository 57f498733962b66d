package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mt5-smc-bot/internal/bot"
	"mt5-smc-bot/internal/logging"
	"mt5-smc-bot/internal/market"
	"mt5-smc-bot/internal/poi"
)

// ZoneSource exposes the POI detectors to the API for ad-hoc inspection.
type ZoneSource interface {
	Zones(tf market.Timeframe) map[string][]poi.Zone
}

// Server is the read-only operator status API.
type Server struct {
	router *gin.Engine
	engine *bot.Engine
	zones  ZoneSource
	log    *logging.Logger
	http   *http.Server
}

// NewServer builds the router. zones may be nil to disable the zone endpoint.
func NewServer(engine *bot.Engine, zones ZoneSource, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router: gin.New(),
		engine: engine,
		zones:  zones,
		log:    log.WithComponent("api"),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/health", s.handleHealth)
	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/trades", s.handleTrades)
		apiGroup.GET("/zones/:timeframe", s.handleZones)
	}
	return s
}

// Start listens on addr until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.Info("Status API listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.engine.Trades()})
}

func (s *Server) handleZones(c *gin.Context) {
	if s.zones == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "zone inspection disabled"})
		return
	}
	tf, err := market.ParseTimeframe(c.Param("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.zones.Zones(tf))
}
