// Package httpserver exposes the payment-method API over gin and wires the
// transaction security checks in front of it.
package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/txguard/internal/audit"
	"github.com/and161185/txguard/internal/convert"
	"github.com/and161185/txguard/internal/envelope"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/security"
	"github.com/and161185/txguard/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	cards     service.CardService
	envelopes *envelope.Service
	channel   *security.ChannelEnforcer
	stepUp    *security.StepUp
	audit     audit.Recorder
	log       *zap.Logger
}

// Deps collects Server dependencies.
type Deps struct {
	Auth      service.AuthService
	Cards     service.CardService
	Envelopes *envelope.Service
	Channel   *security.ChannelEnforcer
	StepUp    *security.StepUp
	Audit     audit.Recorder
	Log       *zap.Logger
}

// New constructs a Server.
func New(d Deps) *Server {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{
		auth:      d.Auth,
		cards:     d.Cards,
		envelopes: d.Envelopes,
		channel:   d.Channel,
		stepUp:    d.StepUp,
		audit:     d.Audit,
		log:       d.Log,
	}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(Recover(s.log), Logging(s.log))
	r.NoRoute(noRoute)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api", TransactionHeaders())

	authg := api.Group("/auth", s.SecureChannel())
	authg.POST("/register", s.register)
	authg.POST("/login", s.login)

	pm := api.Group("/payment-methods", s.RequireAuth())
	pm.GET("", s.listCards)
	// channel, then step-up, then timestamp+nonce
	pm.POST("", s.SecureChannel(), s.StepUp(), s.RequestIntegrity(), s.addCard)
	pm.GET("/default", s.SecureChannel(), s.OptionalStepUp(), s.RequestIntegrity(), s.defaultCard)
	pm.PUT("/:id/default", s.SecureChannel(), s.StepUp(), s.RequestIntegrity(), s.setDefault)
	pm.DELETE("/:id", s.SecureChannel(), s.StepUp(), s.RequestIntegrity(), s.removeCard)
	return r
}

// --- Auth ---

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errs.BadRequest("username and password are required"))
		return
	}
	id, err := s.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"userId": id})
}

func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errs.BadRequest("username and password are required"))
		return
	}
	tok, u, err := s.auth.LoginWithIP(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, convert.ToTokenView(tok, u))
}

// --- Payment methods ---

func (s *Server) userID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := UserIDFromCtx(c.Request.Context())
	if !ok {
		abortWithError(c, errs.ErrAuthRequired)
	}
	return id, ok
}

func cardID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		abortWithError(c, errs.ErrCardNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) listCards(c *gin.Context) {
	uid, ok := s.userID(c)
	if !ok {
		return
	}
	recs, err := s.cards.ListCards(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, convert.ToCardViews(recs))
}

func (s *Server) addCard(c *gin.Context) {
	uid, ok := s.userID(c)
	if !ok {
		return
	}
	var req convert.CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errs.BadRequest("cardNumber and expiry are required"))
		return
	}
	rec, err := s.cards.AddCard(c.Request.Context(), uid, convert.ToCardInput(req), req.MakeDefault)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.writeEnvelope(c, http.StatusCreated, convert.ToCardView(*rec))
}

func (s *Server) defaultCard(c *gin.Context) {
	uid, ok := s.userID(c)
	if !ok {
		return
	}
	rec, data, err := s.cards.DefaultCard(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	view := convert.ToDefaultCardView(*rec, data)
	if !security.IsReauthenticated(c.Request.Context()) {
		view.Expiry = ""
	}
	s.writeEnvelope(c, http.StatusOK, view)
}

func (s *Server) setDefault(c *gin.Context) {
	uid, ok := s.userID(c)
	if !ok {
		return
	}
	id, ok := cardID(c)
	if !ok {
		return
	}
	rec, err := s.cards.SetDefault(c.Request.Context(), uid, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.writeEnvelope(c, http.StatusOK, convert.ToCardView(*rec))
}

func (s *Server) removeCard(c *gin.Context) {
	uid, ok := s.userID(c)
	if !ok {
		return
	}
	id, ok := cardID(c)
	if !ok {
		return
	}
	remove, purged := s.cards.RemoveCard, c.Query("purge") == "true"
	if purged {
		remove = s.cards.PurgeCard
	}
	if err := remove(c.Request.Context(), uid, id); err != nil {
		abortWithError(c, err)
		return
	}
	s.writeEnvelope(c, http.StatusOK, gin.H{"id": id.String(), "removed": true, "purged": purged})
}
