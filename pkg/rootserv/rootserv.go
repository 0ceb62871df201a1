// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rootserv

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"meteodash/pkg/logger"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
)

// RootServer holds a mux and the list of attached sub-handlers.
type RootServer struct {
	log        *logger.Logger
	addr       string
	mux        *http.ServeMux
	subservers map[string]string // path -> description
	mainPath   string
	accessLog  io.Writer
	routes     sync.Once
}

// New creates a new RootServer bound to an address.
func New(addr string) *RootServer {
	return &RootServer{
		addr:       addr,
		mux:        http.NewServeMux(),
		subservers: make(map[string]string),
		log:        logger.New("HTTPServer"),
		accessLog:  logger.Writer(),
	}
}

func (ms *RootServer) String() string { return "HTTPServer" }

// Attach registers handler under path; the handler sees paths with the
// prefix stripped.
func (ms *RootServer) Attach(path, desc string, handler http.Handler) {
	ms.log.Info("Attach: %s", path)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	pretty := strings.TrimRight(path, "/")
	ms.subservers[pretty] = desc

	ms.mux.Handle(pretty+"/", http.StripPrefix(pretty, handler))
	// "/dashboard" without a trailing slash should still land on the handler
	ms.mux.Handle(pretty, http.RedirectHandler(pretty+"/", http.StatusMovedPermanently))
}

// AttachExact registers handler for exactly path, without prefix stripping.
func (ms *RootServer) AttachExact(path, desc string, handler http.Handler) {
	ms.log.Info("Attach: %s", path)
	ms.subservers[path] = desc
	ms.mux.Handle(path, handler)
}

// SetMainPage makes "/" redirect to an attached path.
func (ms *RootServer) SetMainPage(path string) {
	ms.mainPath = path
}

func (ms *RootServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprintln(w, "<!DOCTYPE html><html><head><title>meteodash</title></head><body>")
	fmt.Fprintln(w, "<h1>Available Sub-Servers</h1><ul>")

	paths := make([]string, 0, len(ms.subservers))
	for path := range ms.subservers {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		desc := html.EscapeString(ms.subservers[path])
		fmt.Fprintf(w, `<li><a href="%s">%s</a> - %s</li>`, path, path, desc)
	}

	fmt.Fprintln(w, "</ul></body></html>")
}

// Handler returns the full handler chain: routes, panic recovery and access log.
func (ms *RootServer) Handler() http.Handler {
	ms.routes.Do(func() {
		ms.mux.HandleFunc("/index", ms.handleIndex)
		ms.mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
			target := "/index"
			if ms.mainPath != "" {
				target = ms.mainPath
			}
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	})

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(ms.mux)
	return handlers.CombinedLoggingHandler(ms.accessLog, h)
}

// Run starts serving and blocks until the context is canceled.
func (ms *RootServer) Run(ctx context.Context) {
	ms.log.Info("Running on %s", ms.addr)

	srv := &http.Server{
		Addr:              ms.addr,
		Handler:           ms.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		ms.log.Info("Stopped")
	case err := <-errCh:
		if err != nil {
			ms.log.Error("Stopped: %T %+v", err, err)
		}
	}
}
