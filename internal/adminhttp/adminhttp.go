// Package adminhttp implements the read-mostly, session-authenticated
// admin HTTP plane (§6.1 C13): an INFO-equivalent JSON snapshot,
// Prometheus exposition, slow log, and client list, separate from the
// RESP TCP port. Built the way the teacher builds its own HTTP surface —
// Gin, gin-contrib middleware, zap request logging — generalized from
// channel CRUD to a handful of operator endpoints, all read-only except
// PATCH /admin/config, which updates the runtime config overlay.
package adminhttp

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	sessionsredis "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/dispatch"
	"github.com/example/redisd/internal/metrics"
	"github.com/example/redisd/internal/server"
	"github.com/example/redisd/pkg/jsonx"
)

const sessionCookieName = "redisd_admin"
const sessionAuthKey = "authenticated"

// Plane bundles everything the admin HTTP handlers read. It never
// mutates the keyspace (§4.8 "this plane is read-only with respect to
// the keyspace").
type Plane struct {
	Config     config.Config
	Dispatcher *dispatch.Dispatcher
	Srv        *server.Server
	Metrics    *metrics.Registry
	Log        *zap.Logger
	started    time.Time
}

// New constructs the Gin engine for the admin plane. sessionStore addr is
// the same RESP address redisd itself listens on: admin sessions are
// stored as ordinary keys in the server they administer, via
// gin-contrib/sessions' redis backend (boj/redistore + gomodule/redigo
// underneath).
func New(cfg config.Config, d *dispatch.Dispatcher, srv *server.Server, m *metrics.Registry, log *zap.Logger) (*gin.Engine, error) {
	p := &Plane{Config: cfg, Dispatcher: d, Srv: srv, Metrics: m, Log: log.Named("admin"), started: time.Now()}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())

	// Baseline security headers, always on.
	r.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      cfg.AdminDevCORS,
	}))

	// Dev-only CORS, mirroring the teacher's ENV=dev gate.
	if cfg.AdminDevCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(zapLogger(p.Log))

	redisAddr := cfg.Bind
	if redisAddr == "0.0.0.0" || redisAddr == "" {
		redisAddr = "127.0.0.1"
	}
	store, err := sessionsredis.NewStore(10, "tcp", redisAddr+":"+strconv.Itoa(cfg.Port), "", []byte(sessionSecret(cfg)))
	if err != nil {
		return nil, err
	}
	r.Use(sessions.Sessions(sessionCookieName, store))

	r.POST("/admin/login", p.handleLogin)

	authed := r.Group("/admin")
	authed.Use(p.requireSession)
	authed.GET("/info", p.handleInfo)
	authed.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Reg, promhttp.HandlerOpts{})))
	authed.GET("/slowlog", p.handleSlowLog)
	authed.GET("/clients", p.handleClients)
	authed.PATCH("/config", p.handleConfigPatch)

	return r, nil
}

// requireSession rejects any request without an authenticated session
// (§4.8 "the above routes require an authenticated session").
func (p *Plane) requireSession(c *gin.Context) {
	sess := sessions.Default(c)
	if ok, _ := sess.Get(sessionAuthKey).(bool); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "not authenticated"})
		return
	}
	c.Next()
}

func (p *Plane) handleLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if p.Config.AdminPassword == "" || req.Password != p.Config.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid password"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionAuthKey, true)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (p *Plane) handleInfo(c *gin.Context) {
	ks := p.Dispatcher.Keyspace
	dbs := make(map[string]int, ks.Count())
	for i := 0; i < ks.Count(); i++ {
		db := ks.DB(i)
		db.Lock()
		n := db.Size()
		db.Unlock()
		if n > 0 {
			dbs[strconv.Itoa(i)] = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":    int(time.Since(p.started).Seconds()),
		"connected_clients": len(p.Srv.ConnectedClientIDs()),
		"maxclients":        p.Config.MaxClients,
		"databases":         dbs,
	})
}

func (p *Plane) handleSlowLog(c *gin.Context) {
	entries := p.Dispatcher.SlowLog.Recent(-1)
	out := make([]gin.H, len(entries))
	for i, e := range entries {
		argv := make([]string, len(e.Argv))
		for j, a := range e.Argv {
			argv[j] = string(a)
		}
		out[i] = gin.H{
			"id":          e.ID,
			"timestamp":   e.Timestamp.Unix(),
			"duration_us": e.Duration.Microseconds(),
			"argv":        argv,
			"client_addr": e.ClientAddr,
			"client_name": e.ClientName,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (p *Plane) handleClients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clients": p.Srv.ConnectedClientIDs()})
}

// configPatchRequest mirrors CONFIG SET's runtime-mutable subset
// (config.Overlay). Each field is a tri-state jsonx.Field so a caller can
// distinguish "leave as-is" (field absent) from "set to zero value"
// (field present with a zero/false/null value).
type configPatchRequest struct {
	MaxMemory              jsonx.Field[int64] `json:"maxmemory"`
	AppendOnly             jsonx.Field[bool]  `json:"appendonly"`
	SlowLogSlowerThanMicro jsonx.Field[int64] `json:"slowlog_slower_than_micros"`
}

// handleConfigPatch applies a partial update to the same runtime-mutable
// config overlay that CONFIG SET writes to, so the admin plane and RESP
// clients observe one consistent, shared state.
func (p *Plane) handleConfigPatch(c *gin.Context) {
	var req configPatchRequest
	if err := jsonx.ParseJSONObject(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ov := p.Dispatcher.Overlay
	if v, ok := req.MaxMemory.Value(); ok {
		ov.MaxMemory = v
	}
	if v, ok := req.AppendOnly.Value(); ok {
		ov.AppendOnly = v
	}
	if v, ok := req.SlowLogSlowerThanMicro.Value(); ok {
		ov.SlowLogSlowerThan = time.Duration(v) * time.Microsecond
		p.Dispatcher.SlowLog.SetThreshold(ov.SlowLogSlowerThan)
	}

	c.JSON(http.StatusOK, gin.H{
		"maxmemory":                  ov.MaxMemory,
		"appendonly":                 ov.AppendOnly,
		"slowlog_slower_than_micros": ov.SlowLogSlowerThan.Microseconds(),
	})
}

func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// sessionSecret derives a signing key for the session cookie. A fixed
// fallback is fine here: session tampering without the admin password is
// still blocked at the login handler, and redisd has no other secret
// material to derive this from at boot.
func sessionSecret(cfg config.Config) string {
	if cfg.AdminPassword != "" {
		return cfg.AdminPassword
	}
	return "redisd-admin-session"
}
