// Package restapi is the operator HTTP surface of a persistence service: entities can be
// inspected and mutated, each request running in its own request scope so mutations are
// written back when it ends.
package restapi

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware

	"github.com/sharedcode/livepers/persistence"
	"github.com/sharedcode/livepers/restapi/docs"
)

// Options configures the REST API.
type Options struct {
	// Node is the node marker of entities created through the API.
	Node string
	// Token, when not empty, is accepted as "Authorization: Bearer <token>".
	Token string
	// Verifier, when set, checks bearer tokens other than Token, e.g. OktaVerifier.
	Verifier TokenVerifier
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// Server serves a persistence service over HTTP.
type Server struct {
	service *persistence.Service
	options Options
	router  *gin.Engine
}

// NewServer creates the router and registers the entity and stats routes under /api/v1.
// The API documentation is served at /swagger/index.html.
//
// @title livepers REST API
// @version 1.0
// @description Inspect and mutate the live entities of a persistence node.
// @BasePath /api/v1
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the API or Okta token.
func NewServer(service *persistence.Service, options Options) (*Server, error) {
	s := &Server{
		service: service,
		options: options,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery())

	methods := make(Methods)
	for _, err := range []error{
		methods.RegisterMethod(GET, "/entities", s.ListEntities),
		methods.RegisterMethod(GET, "/entities/:id", s.GetEntity),
		methods.RegisterMethod(POST, "/entities", s.CreateEntity),
		methods.RegisterMethod(PATCH, "/entities/:id", s.PatchEntity),
		methods.RegisterMethod(DELETE, "/entities/:id", s.DeleteEntity),
		methods.RegisterMethod(POST, "/entities/:id/call/:method", s.CallEntity),
		methods.RegisterMethod(GET, "/stats", s.Stats),
	} {
		if err != nil {
			return nil, err
		}
	}
	if err := methods.Mount(s.router.Group("/api/v1"), s.verifyHeaderToken); err != nil {
		return nil, err
	}
	if options.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(options.Metrics))
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info("REST API listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return fmt.Errorf("REST API: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("REST API shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
