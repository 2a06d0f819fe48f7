package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/storage"
	"github.com/chochsentinel/sentinel/tools/metrics"
)

// Server exposes the dashboard's REST query API and WebSocket endpoint over
// an AlertStore.
type Server struct {
	hub   *Hub
	store storage.AlertStore

	engine *gin.Engine
}

// NewServer builds a Server with its routes registered, backed by hub (for
// the socket endpoint) and store (for the REST endpoints).
func NewServer(hub *Hub, store storage.AlertStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{hub: hub, store: store, engine: engine}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	alerts := s.engine.Group("/api/alerts")
	{
		alerts.GET("/recent", s.handleRecent)
		alerts.GET("/filter", s.handleFilter)
		alerts.GET("/stats", s.handleStats)
		alerts.GET("/unique/:field", s.handleUniqueValues)
	}
}

// ListenAndServe starts the HTTP server bound to addr (e.g. "0.0.0.0:5000"),
// matching FLASK_HOST/FLASK_PORT.
func (s *Server) ListenAndServe(addr string) error {
	return s.engine.Run(addr)
}

// filtersFromQuery builds the AlertFilter set shared by /recent and
// /filter from their common query parameters.
func filtersFromQuery(c *gin.Context) []storage.AlertFilter {
	var filters []storage.AlertFilter
	if symbol := c.Query("symbol"); symbol != "" {
		filters = append(filters, storage.WithSymbol(symbol))
	}
	if timeframe := c.Query("timeframe"); timeframe != "" {
		filters = append(filters, storage.WithTimeframe(timeframe))
	}
	if direction := c.Query("direction"); direction != "" {
		filters = append(filters, storage.WithDirection(model.Direction(direction)))
	}
	if signalType := c.Query("signal_type"); signalType != "" {
		filters = append(filters, storage.WithSignalType(signalType))
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := c.Query("to"); v != "" {
		to, _ = time.Parse(time.RFC3339, v)
	}
	if !from.IsZero() || !to.IsZero() {
		filters = append(filters, storage.WithDateRange(from, to))
	}
	return filters
}

func (s *Server) handleRecent(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	alerts, err := s.store.Recent(limit, filtersFromQuery(c)...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) handleFilter(c *gin.Context) {
	alerts, err := s.store.Filter(filtersFromQuery(c)...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(filtersFromQuery(c)...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleUniqueValues(c *gin.Context) {
	field := c.Param("field")
	switch field {
	case "symbol", "timeframe", "direction", "signal_type":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown field: " + field})
		return
	}

	values, err := s.store.UniqueValues(field)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}
