// Package api provides the REST API server for groovectl
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/groovectl/pkg/tempo"
)

// @title groovectl API
// @version 1.0
// @description Tempo and swing control for a step sequencer
// @host localhost:8080
// @BasePath /api/v1

// Server exposes a tempo.Controller over HTTP
type Server struct {
	ctrl *tempo.Controller
	now  func() time.Time
}

// NewServer creates a Server for the given controller
func NewServer(ctrl *tempo.Controller) *Server {
	return &Server{ctrl: ctrl, now: time.Now}
}

// StartServer starts the API server on the specified port
func StartServer(ctrl *tempo.Controller, port int) error {
	return NewServer(ctrl).Router().Run(fmt.Sprintf(":%d", port))
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/state", s.getState)
		v1.GET("/events", s.streamEvents)

		v1.PUT("/tempo", s.setTempo)
		v1.POST("/tempo/adjust", s.adjustTempo)
		v1.PUT("/swing", s.setSwing)
		v1.POST("/swing/adjust", s.adjustSwing)

		v1.POST("/tap", s.tap)
		v1.DELETE("/tap", s.resetTap)

		v1.GET("/presets", listPresets)
		v1.POST("/presets/groove/:name", s.applyGroovePreset)
		v1.POST("/presets/mpc/:name", s.applyMPCPreset)

		v1.GET("/validate/tempo", validateTempo)
		v1.GET("/validate/swing", validateSwing)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// StateResponse is the JSON form of tempo.State
type StateResponse struct {
	Tempo         float64 `json:"tempo"`
	TargetTempo   float64 `json:"target_tempo"`
	Transitioning bool    `json:"transitioning"`
	Swing         float64 `json:"swing"`
	SwingPercent  int     `json:"swing_percent"`
}

func newStateResponse(s tempo.State) StateResponse {
	return StateResponse{
		Tempo:         s.Tempo,
		TargetTempo:   s.Target,
		Transitioning: s.Transitioning,
		Swing:         s.Swing,
		SwingPercent:  s.SwingPercentage(),
	}
}

// TempoRequest sets or adjusts the tempo; Smooth defaults to true
type TempoRequest struct {
	BPM    *float64 `json:"bpm"`
	Delta  *float64 `json:"delta"`
	Smooth *bool    `json:"smooth"`
}

func (r TempoRequest) smooth() bool {
	return r.Smooth == nil || *r.Smooth
}

// SwingRequest sets swing as a fraction or as an MPC percentage
type SwingRequest struct {
	Amount  *float64 `json:"amount"`
	Percent *int     `json:"percent"`
	Delta   *float64 `json:"delta"`
}

// TapRequest records a tap; TimestampMS defaults to the server clock
type TapRequest struct {
	TimestampMS *int64 `json:"timestamp_ms"`
	Apply       bool   `json:"apply"`
}

// TapResponse carries the tap-tempo candidate
type TapResponse struct {
	BPM   float64       `json:"bpm"`
	OK    bool          `json:"ok"`
	State StateResponse `json:"state"`
}

// ValidationResponse reports whether a value is in range
type ValidationResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "groovectl",
	})
}

// getState godoc
// @Summary Current tempo and swing
// @Tags state
// @Produce json
// @Success 200 {object} StateResponse
// @Router /api/v1/state [get]
func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// setTempo godoc
// @Summary Set the tempo
// @Description Out of range values are clamped. Large smooth changes glide toward the target.
// @Tags tempo
// @Accept json
// @Produce json
// @Param request body TempoRequest true "bpm and optional smooth flag"
// @Success 200 {object} StateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/tempo [put]
func (s *Server) setTempo(c *gin.Context) {
	var req TempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.BPM == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bpm is required"})
		return
	}
	s.ctrl.SetTempo(*req.BPM, req.smooth())
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// adjustTempo godoc
// @Summary Adjust the tempo relative to the current value
// @Tags tempo
// @Accept json
// @Produce json
// @Param request body TempoRequest true "delta and optional smooth flag"
// @Success 200 {object} StateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/tempo/adjust [post]
func (s *Server) adjustTempo(c *gin.Context) {
	var req TempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Delta == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delta is required"})
		return
	}
	s.ctrl.AdjustTempo(*req.Delta, req.smooth())
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// setSwing godoc
// @Summary Set the swing
// @Description Accepts either a fraction (0-0.75) or an MPC percentage (50-75). Values are clamped.
// @Tags swing
// @Accept json
// @Produce json
// @Param request body SwingRequest true "amount or percent"
// @Success 200 {object} StateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/swing [put]
func (s *Server) setSwing(c *gin.Context) {
	var req SwingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	switch {
	case req.Amount != nil && req.Percent != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and percent are mutually exclusive"})
		return
	case req.Amount != nil:
		s.ctrl.SetSwing(*req.Amount)
	case req.Percent != nil:
		s.ctrl.SetSwingPercentage(*req.Percent)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount or percent is required"})
		return
	}
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// adjustSwing godoc
// @Summary Adjust the swing relative to the current value
// @Tags swing
// @Accept json
// @Produce json
// @Param request body SwingRequest true "delta"
// @Success 200 {object} StateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/swing/adjust [post]
func (s *Server) adjustSwing(c *gin.Context) {
	var req SwingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Delta == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delta is required"})
		return
	}
	s.ctrl.AdjustSwing(*req.Delta)
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// tap godoc
// @Summary Record a tap
// @Description Returns the tap-tempo candidate once two taps are in the window. With apply set the candidate is applied smoothly.
// @Tags tap
// @Accept json
// @Produce json
// @Param request body TapRequest false "optional timestamp and apply flag"
// @Success 200 {object} TapResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/tap [post]
func (s *Server) tap(c *gin.Context) {
	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	at := s.now()
	if req.TimestampMS != nil {
		at = time.UnixMilli(*req.TimestampMS)
	}

	bpm, ok := s.ctrl.TapTempo(at)
	if ok && req.Apply {
		s.ctrl.SetTempo(bpm, true)
	}
	c.JSON(http.StatusOK, TapResponse{BPM: bpm, OK: ok, State: newStateResponse(s.ctrl.State())})
}

// resetTap godoc
// @Summary Clear recorded taps
// @Tags tap
// @Success 204
// @Router /api/v1/tap [delete]
func (s *Server) resetTap(c *gin.Context) {
	s.ctrl.ResetTapTempo()
	c.Status(http.StatusNoContent)
}

// listPresets godoc
// @Summary List swing presets
// @Tags presets
// @Produce json
// @Success 200 {object} map[string][]tempo.Preset
// @Router /api/v1/presets [get]
func listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"groove": tempo.GroovePresets(),
		"mpc":    tempo.MPCSwingPresets(),
	})
}

// applyGroovePreset godoc
// @Summary Apply a groove preset
// @Description Unknown names set swing to zero.
// @Tags presets
// @Produce json
// @Param name path string true "preset name"
// @Success 200 {object} StateResponse
// @Router /api/v1/presets/groove/{name} [post]
func (s *Server) applyGroovePreset(c *gin.Context) {
	s.ctrl.ApplyGroovePreset(c.Param("name"))
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// applyMPCPreset godoc
// @Summary Apply an MPC swing preset
// @Description Unknown names set swing to zero.
// @Tags presets
// @Produce json
// @Param name path string true "preset name, e.g. 58%"
// @Success 200 {object} StateResponse
// @Router /api/v1/presets/mpc/{name} [post]
func (s *Server) applyMPCPreset(c *gin.Context) {
	s.ctrl.ApplyMPCSwingPreset(c.Param("name"))
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

// validateTempo godoc
// @Summary Check a tempo without applying it
// @Tags validate
// @Produce json
// @Param bpm query number true "tempo in BPM"
// @Success 200 {object} ValidationResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/validate/tempo [get]
func validateTempo(c *gin.Context) {
	validate(c, "bpm", tempo.TempoValidationError)
}

// validateSwing godoc
// @Summary Check a swing amount without applying it
// @Tags validate
// @Produce json
// @Param amount query number true "swing fraction"
// @Success 200 {object} ValidationResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/validate/swing [get]
func validateSwing(c *gin.Context) {
	validate(c, "amount", tempo.SwingValidationError)
}

func validate(c *gin.Context, param string, check func(float64) error) {
	raw, ok := c.GetQuery(param)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": param + " is required"})
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a number", param)})
		return
	}
	if err := check(v); err != nil {
		c.JSON(http.StatusOK, ValidationResponse{Valid: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ValidationResponse{Valid: true})
}

// streamEvents godoc
// @Summary Stream change events
// @Description Server-sent events; one event per tempo, swing or transition change.
// @Tags state
// @Produce text/event-stream
// @Router /api/v1/events [get]
func (s *Server) streamEvents(c *gin.Context) {
	events, cancel := s.ctrl.Subscribe(32)
	defer cancel()

	c.SSEvent("state", newStateResponse(s.ctrl.State()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(evt.Kind.String(), newStateResponse(evt.State))
			return true
		}
	})
}
