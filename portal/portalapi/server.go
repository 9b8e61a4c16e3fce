// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portalapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config defines configuration for the portal API server.
type Config struct {
	Address string `help:"portal api http listening address" default:":8080"`
}

// Server provides the portal's HTTP endpoints.
type Server struct {
	log *zap.Logger

	listener net.Listener
	server   http.Server

	config Config
}

// NewServer returns a new portal API server with all routes registered.
func NewServer(log *zap.Logger, listener net.Listener, config Config, notifications *Notifications, deviceTokens *DeviceTokens, prov *Provisioning) *Server {
	server := &Server{
		log:      log,
		listener: listener,
		config:   config,
	}

	router := mux.NewRouter()
	root := router.PathPrefix("/api/v0").Subrouter()

	root.HandleFunc("/notifications/dispatch", notifications.Dispatch).Methods(http.MethodPost)
	root.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	root.HandleFunc("/notifications/unread-count", notifications.UnreadCount).Methods(http.MethodGet)
	root.HandleFunc("/notifications/read-all", notifications.MarkAllRead).Methods(http.MethodPost)
	root.HandleFunc("/notifications/{id}/read", notifications.MarkRead).Methods(http.MethodPost)

	root.HandleFunc("/device-tokens", deviceTokens.RegisterToken).Methods(http.MethodPost)

	root.HandleFunc("/provisioning/bulk", prov.BulkGenerate).Methods(http.MethodPost)

	server.server = http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// Run starts the server and blocks until ctx is canceled or the server
// fails.
func (server *Server) Run(ctx context.Context) error {
	if server.listener == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close shuts the server down immediately.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}
