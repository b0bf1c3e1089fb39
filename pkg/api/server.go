package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echojwt "github.com/labstack/echo-jwt/v4"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/ldmsys/ldm/pkg/codec"
	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/identity"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/manager"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/sync"
	"github.com/ldmsys/ldm/pkg/tm"
	"github.com/ldmsys/ldm/pkg/types"
)

// Deps bundles everything a Server needs to wire its routes. Repo is the
// "central" hierarchy view — Raft-backed in authoritative mode, a direct
// local store in local (single-user, disconnected) mode; Offline is
// always a local, single-writer sandbox store, present in both modes, the
// "Offline Storage" platform the sync engine pulls into and the
// offline.* operations drive directly. Cluster is nil in local mode:
// there is no cluster to join, so the bootstrap endpoints are not
// registered.
type Deps struct {
	Config     *config.Config
	Repo       *repository.Repository
	Offline    *repository.Repository
	TM         *tm.Engine
	Scheduler  *scheduler.Scheduler
	SyncEngine *sync.Engine
	Identity   *identity.Service
	Cluster    *manager.Manager
	Metrics    metrics.Source
	Codecs     *codec.Registry
}

// Server fronts Deps with an echo.Echo HTTP server.
type Server struct {
	e    *echo.Echo
	deps Deps
}

// NewServer builds a Server and registers every route. Call Start to
// begin serving.
func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	s := &Server{e: e, deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.e

	e.GET("/healthz", echo.WrapHandler(metrics.HealthHandler()))
	e.GET("/readyz", echo.WrapHandler(metrics.ReadyHandler()))
	e.GET("/livez", echo.WrapHandler(metrics.LivenessHandler()))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if s.deps.Cluster != nil {
		cluster := e.Group("/v1/cluster")
		cluster.POST("/join", s.handleClusterJoin)
		cluster.POST("/certificate", s.handleClusterCertificate)
	}

	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(identity.Claims)
		},
		SigningKey:     []byte(s.deps.Config.JWTSecret),
		TokenLookup:    "header:Authorization:Bearer ",
		SuccessHandler: s.loadPrincipal,
	}))

	if s.deps.Cluster != nil {
		cl := v1.Group("/cluster")
		cl.POST("/join-token", s.handleClusterJoinToken, requireRole(types.RoleAdmin))
		cl.GET("/info", s.handleClusterInfo, requireRole(types.RoleAdmin))
	}

	h := v1.Group("/hierarchy")
	h.GET("/children", s.handleListChildren)
	h.POST("/platforms", s.handleCreatePlatform, requireRole(types.RoleAdmin))
	h.POST("/projects", s.handleCreateProject, requireRole(types.RoleAdmin))
	h.POST("/folders", s.handleCreateFolder, requireRole(types.RoleTranslator))
	h.POST("/rename", s.handleRename, requireRole(types.RoleTranslator))
	h.POST("/move", s.handleMove, requireRole(types.RoleTranslator))
	h.POST("/move-cross-project", s.handleMoveCrossProject, requireRole(types.RoleTranslator))
	h.POST("/copy", s.handleCopy, requireRole(types.RoleTranslator))
	h.POST("/soft-delete", s.handleSoftDelete, requireRole(types.RoleTranslator))
	h.POST("/restore", s.handleRestore, requireRole(types.RoleTranslator))
	h.POST("/purge", s.handlePurge, requireRole(types.RoleAdmin))
	h.GET("/trash", s.handleListTrash)
	h.POST("/empty-trash", s.handleEmptyTrash, requireRole(types.RoleAdmin))

	f := v1.Group("/file")
	f.POST("/upload", s.handleFileUpload, requireRole(types.RoleTranslator))
	f.GET("/:id/download", s.handleFileDownload)
	f.POST("/:id/convert", s.handleFileConvert, requireRole(types.RoleTranslator))
	f.POST("/:id/register-as-tm", s.handleRegisterAsTM, requireRole(types.RoleTranslator))
	f.POST("/:id/merge", s.handleFileMerge, requireRole(types.RoleTranslator))
	f.GET("/:id/extract-glossary", s.handleExtractGlossary)
	f.GET("/:id/run-qa", s.handleRunQA)

	r := v1.Group("/row")
	r.GET("/:id", s.handleGetRow)
	r.POST("/:id/edit", s.handleEditRow, requireRole(types.RoleTranslator))
	r.POST("/bulk-edit", s.handleBulkEditRow, requireRole(types.RoleTranslator))

	t := v1.Group("/tm")
	t.POST("", s.handleCreateTM, requireRole(types.RoleTranslator))
	t.POST("/:id/import", s.handleImportTM, requireRole(types.RoleTranslator))
	t.POST("/:id/activate", s.handleActivateTM, requireRole(types.RoleTranslator))
	t.POST("/:id/deactivate", s.handleDeactivateTM, requireRole(types.RoleTranslator))
	t.GET("/:id/search", s.handleSearchTM)
	t.POST("/:id/pretranslate", s.handlePretranslateTM, requireRole(types.RoleTranslator))
	t.DELETE("/:id", s.handleDeleteTM, requireRole(types.RoleAdmin))

	o := v1.Group("/ops")
	o.GET("", s.handleOpsList)
	o.GET("/:id", s.handleOpsGet)
	o.POST("/:id/cancel", s.handleOpsCancel)
	o.GET("/subscribe", s.handleOpsSubscribe)

	sy := v1.Group("/sync")
	sy.POST("/subscribe", s.handleSyncSubscribe)
	sy.POST("/:id/unsubscribe", s.handleSyncUnsubscribe)
	sy.GET("/subscriptions", s.handleSyncListSubscriptions)
	sy.POST("/push", s.handleSyncPush, requireRole(types.RoleTranslator))
	sy.POST("/:id/pull", s.handleSyncPull)

	off := v1.Group("/offline")
	off.POST("/folders", s.handleOfflineCreateFolder)
	off.POST("/files", s.handleOfflineUploadFile)
	off.GET("/children", s.handleOfflineList)
	off.POST("/move", s.handleOfflineMove)
	off.POST("/rename", s.handleOfflineRename)
	off.POST("/delete", s.handleOfflineDelete)
	off.POST("/empty-trash", s.handleOfflineEmptyTrash)
}

// Start begins serving on addr, blocking until the listener stops.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, map[string]interface{}{"error": he.Message})
		return
	}
	status, body := errorResponse(err)
	if jsonErr := c.JSON(status, body); jsonErr != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(jsonErr).Msg("failed to write error response")
	}
}
