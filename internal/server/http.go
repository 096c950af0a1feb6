package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/server/middlewares"
	"github.com/tower-qa/tower-qa/pkg/certificates"
)

const (
	ProductionServer string = "prod"
	DevServer        string = "dev"
	APIV2            string = "/api/v2"

	certificateValidity = 365 * 24 * time.Hour
)

// Server is the fake controller's HTTP front. Production mode serves TLS
// with a self-signed certificate generated at construction.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	log    *zap.SugaredLogger
}

// NewServer builds the engine and hands the /api/v2 group to register.
// Extra middlewares run on that group after access logging and recovery.
func NewServer(cfg config.Server, register func(router *gin.RouterGroup), extra ...gin.HandlerFunc) (*Server, error) {
	s := &Server{
		engine: newEngine(cfg.ServerMode),
		log:    zap.S().Named("server"),
	}
	s.http = &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", fmt.Sprint(cfg.HTTPPort)),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.ServerMode == ProductionServer {
		tlsConfig, err := selfSignedTLS()
		if err != nil {
			return nil, err
		}
		s.http.TLSConfig = tlsConfig
	}

	api := s.engine.Group(APIV2, middlewares.Logger(), ginzap.RecoveryWithZap(zap.L(), true))
	api.Use(extra...)
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"description": "towerqa fake controller", "current_version": APIV2 + "/"})
	})
	register(api)

	return s, nil
}

func newEngine(mode string) *gin.Engine {
	if mode == ProductionServer {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Redirect(http.StatusFound, APIV2+"/")
			return
		}
		c.JSON(http.StatusNotFound, v2.Error{Detail: "The requested resource could not be found."})
	})
	return engine
}

func selfSignedTLS() (*tls.Config, error) {
	cert, key, err := certificates.GenerateSelfSignedCertificate(time.Now().Add(certificateValidity))
	if err != nil {
		return nil, fmt.Errorf("generating server certificate: %w", err)
	}
	certPEM, keyPEM, err := certificates.EncodePEM(cert, key)
	if err != nil {
		return nil, fmt.Errorf("encoding server certificate: %w", err)
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, nil
}

// Handler exposes the engine, for serving through httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured port and serves until Stop. A clean
// shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	l, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.http.Addr, err)
	}
	s.log.Infow("listening", "addr", l.Addr().String(), "tls", s.http.TLSConfig != nil)

	if s.http.TLSConfig != nil {
		err = s.http.ServeTLS(l, "", "")
	} else {
		err = s.http.Serve(l)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Errorw("shutdown", "error", err)
	}
}
