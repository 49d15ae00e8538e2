package ginfront

/*
 * Copyright 2020 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// ginfront adapts a gin.Engine into the ProtocolEngine's HTTP codec
// collaborator (§1's "assumed external HTTP codec"): every request is
// translated into a httpmsg.RequestHead + BodyFragment stream, driven
// through one engine.Engine per request, and the resulting FullResponse is
// written back onto the gin.ResponseWriter.
//
// Grounded on wrapper/gin/gin.go's Gin struct (route groups, CORS, gzip,
// session and CSRF middleware config) and wrapper/gin/ginrecover.go's
// NiceRecovery/ginzap.go's access-log middleware, adapted from "caller
// supplies a gin.HandlerFunc per route" to "every route funnels through the
// registered Page/MethodHandler registries".

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	ginlimiter "github.com/patrickmn/go-cache"
	csrf "github.com/utrack/gin-csrf"
	"golang.org/x/time/rate"

	"github.com/socube/WaarpGatewayKernel/engine"
	"github.com/socube/WaarpGatewayKernel/internal/config"
	"github.com/socube/WaarpGatewayKernel/internal/gwlog"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/page"
	"github.com/socube/WaarpGatewayKernel/rest"
)

// readChunkSize bounds how much body is read per BodyFragment handed to the
// engine, matching §4.1's "fed incrementally, not necessarily all at once".
const readChunkSize = 32 * 1024

// Server wraps a gin.Engine configured with the ambient middleware stack
// (CORS, gzip, sessions, CSRF, rate limiting, recovery, access logging) and
// funnels every unmatched-by-gin request through the ProtocolEngine.
type Server struct {
	cfg     *config.Config
	pages   *page.Registry
	methods *rest.Registry
	caps    engine.Capabilities
	log     *gwlog.Log

	ginEngine    *gin.Engine
	limiterCache *ginlimiter.Cache
}

// New builds a Server. pages/methods may each be nil if this deployment only
// serves one of the two engines (§2). log defaults to gwlog.Default when nil.
func New(cfg *config.Config, pages *page.Registry, methods *rest.Registry, caps engine.Capabilities, log *gwlog.Log) *Server {
	if log == nil {
		log = gwlog.Default
	}
	s := &Server{
		cfg:          cfg,
		pages:        pages,
		methods:      methods,
		caps:         caps,
		log:          log,
		limiterCache: ginlimiter.New(cfg.RateLimitTTL, cfg.RateLimitTTL*2),
	}

	g := gin.New()
	g.Use(s.accessLog(), s.recovery(), cors.Default(), gzip.Gzip(gzip.DefaultCompression))
	g.Use(s.perClientRateLimit())
	g.Use(s.sessionMiddleware())
	if cfg.CsrfSecret != "" {
		g.Use(csrf.Middleware(csrf.Options{Secret: cfg.CsrfSecret}))
	}

	g.NoRoute(s.handle)
	s.ginEngine = g
	return s
}

// Handler returns the underlying http.Handler for use with an http.Server
// (allowing TLS, timeouts, and graceful shutdown to be configured by the
// caller, which owns the listener).
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) sessionMiddleware() gin.HandlerFunc {
	var store sessions.Store
	if s.cfg.RedisHostAndPort != "" {
		rs, err := redis.NewStore(10, "tcp", s.cfg.RedisHostAndPort, "", []byte(s.cfg.SessionSecretKey))
		if err != nil {
			s.log.Errorw("redis session store unavailable, falling back to cookie store", "error", err)
			store = cookie.NewStore([]byte(s.cfg.SessionSecretKey))
		} else {
			store = rs
		}
	} else {
		store = cookie.NewStore([]byte(s.cfg.SessionSecretKey))
	}
	return sessions.Sessions(s.cfg.SessionCookieName, store)
}

// perClientRateLimit mirrors wrapper/gin/gin.go's PerClientQps option: a
// token bucket per remote IP, cached with an idle TTL eviction.
func (s *Server) perClientRateLimit() gin.HandlerFunc {
	if s.cfg.RateLimitQps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter, ok := s.limiterCache.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimitQps), s.cfg.RateLimitBurst)
			s.limiterCache.Set(ip, limiter, s.cfg.RateLimitTTL)
		}
		if !limiter.(*rate.Limiter).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

// recovery mirrors ginrecover.go's NiceRecovery: any panic escaping gin's
// own handler chain (outside the engine, which already guards itself via
// engine.recoverPanic) becomes a 500 instead of killing the connection.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.log.Errorw("panic recovered in gin handler chain", "recovered", recovered)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// accessLog mirrors ginzap.go's per-request structured log line.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"latency", time.Since(start).String(),
		)
	}
}

// handle is the single engine entry point every unmatched gin route falls
// into. One engine.Engine is built per request: gin already multiplexes
// many requests, possibly from many TCP connections, across a pooled
// goroutine-per-request model, so "one connection = one actor" (§5) is
// realized here as "one request = one actor" -- the narrowest unit gin
// exposes a stable handle on. See DESIGN.md's Open Question decision.
func (s *Server) handle(c *gin.Context) {
	eng := engine.New(s.caps, s.pages, s.methods, s.cfg)
	eng.Activate(c.ClientIP())
	defer eng.Inactivate()

	head := &httpmsg.RequestHead{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		RawQuery:      c.Request.URL.RawQuery,
		Header:        c.Request.Header,
		ProtoMajor:    c.Request.ProtoMajor,
		ProtoMinor:    c.Request.ProtoMinor,
		RemoteAddr:    c.Request.RemoteAddr,
		ContentLength: c.Request.ContentLength,
		FullBody:      c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete || c.Request.Method == http.MethodHead,
	}

	resp, decision, err := eng.OnHead(head)
	if err != nil {
		s.log.Errorw("engine.OnHead returned an error", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	switch decision {
	case engine.DecisionStaticFallback:
		c.File(s.cfg.BaseStaticPath + c.Request.URL.Path)
		return
	case engine.DecisionAwaitBody:
		resp = s.drainBody(eng, c.Request.Body)
	}

	s.writeResponse(c, resp)
}

// drainBody feeds the request body to the engine in bounded chunks, per
// §4.1's "fed incrementally" model, and returns the final response once the
// terminator fragment completes dispatch.
func (s *Server) drainBody(eng *engine.Engine, body io.ReadCloser) *httpmsg.FullResponse {
	buf := make([]byte, readChunkSize)
	for {
		n, rerr := body.Read(buf)
		last := rerr == io.EOF
		data := make([]byte, n)
		copy(data, buf[:n])

		resp, done, ferr := eng.OnBodyFragment(&httpmsg.BodyFragment{Data: data, Last: last || rerr != nil && rerr != io.EOF})
		if ferr != nil {
			s.log.Errorw("engine.OnBodyFragment returned an error", "error", ferr)
			return nil
		}
		if done {
			return resp
		}
		if rerr != nil && rerr != io.EOF {
			return nil
		}
	}
}

func (s *Server) writeResponse(c *gin.Context, resp *httpmsg.FullResponse) {
	if resp == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	for k, vals := range resp.Header {
		for _, v := range vals {
			c.Writer.Header().Add(k, v)
		}
	}
	if resp.WillClose {
		c.Writer.Header().Set("Connection", "close")
	}
	c.Writer.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	c.Writer.WriteHeader(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
}
