// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package server exposes the compiler over HTTP and websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/log"
)

// Config holds the service settings. A MaxBodySize of zero or less leaves
// request bodies and websocket messages unbounded.
type Config struct {
	ListenAddr  string
	CorsOrigins []string `toml:",omitempty"`
	MaxBodySize int64
}

// DefaultConfig contains the default service settings.
var DefaultConfig = Config{
	ListenAddr:  "127.0.0.1:8645",
	MaxBodySize: 1 << 20,
}

const (
	readHeaderTimeout = 5 * time.Second
	wsWriteTimeout    = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Compiler turns source text into a program. *cache.Cache implements it.
type Compiler interface {
	Get(src string) (*bytecode.Program, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(src string) (*bytecode.Program, error)

// Get calls f(src).
func (f CompilerFunc) Get(src string) (*bytecode.Program, error) { return f(src) }

// Server serves compile requests.
type Server struct {
	cfg      Config
	comp     Compiler
	upgrader websocket.Upgrader
	log      log.Logger
}

// New creates a server in front of comp.
func New(cfg Config, comp Compiler) *Server {
	s := &Server{cfg: cfg, comp: comp, log: log.New("module", "server")}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.POST("/compile", s.handleCompile)
	router.GET("/opcodes", s.handleOpcodes)
	router.GET("/ws", s.handleWebsocket)

	if len(s.cfg.CorsOrigins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CorsOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(router)
}

// ListenAndServe serves on cfg.ListenAddr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()
	s.log.Info("Compile service started", "addr", listener.Addr(), "cors", s.cfg.CorsOrigins)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.log.Info("Compile service stopped", "addr", listener.Addr())
	if err == nil {
		if serr := <-errc; !errors.Is(serr, http.ErrServerClosed) {
			err = serr
		}
	}
	return err
}

// checkOrigin applies the CORS origin list to websocket upgrades. With no
// list configured only same-host requests are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.CorsOrigins) == 0 {
		return sameHost(origin, r.Host)
	}
	for _, allowed := range s.cfg.CorsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func sameHost(origin, host string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if origin == scheme+host {
			return true
		}
	}
	return false
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := uuid.New().String()
	var src io.Reader = r.Body
	if s.cfg.MaxBodySize > 0 {
		src = io.LimitReader(r.Body, s.cfg.MaxBodySize+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		s.log.Debug("Failed to read request", "id", id, "err", err)
		writeJSON(w, http.StatusBadRequest, &Response{ID: id, Error: &ErrorInfo{Stage: "request", Message: err.Error()}})
		return
	}
	if s.cfg.MaxBodySize > 0 && int64(len(body)) > s.cfg.MaxBodySize {
		writeJSON(w, http.StatusRequestEntityTooLarge, &Response{ID: id, Error: &ErrorInfo{Stage: "request", Message: "request body too large"}})
		return
	}
	resp, status := s.compile(id, string(body))
	s.log.Debug("Served compile request", "id", id, "remote", r.RemoteAddr, "bytes", len(body), "status", status)
	writeJSON(w, status, resp)
}

func (s *Server) handleOpcodes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, OpcodeTable())
}

// handleWebsocket compiles each text message and answers with a Response.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()
	if s.cfg.MaxBodySize > 0 {
		conn.SetReadLimit(s.cfg.MaxBodySize)
	}

	session := uuid.New().String()
	logger := s.log.New("session", session)
	logger.Debug("Websocket session opened", "remote", r.RemoteAddr)
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Websocket read failed", "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		resp, _ := s.compile(uuid.New().String(), string(msg))
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			logger.Debug("Websocket write failed", "err", err)
			return
		}
	}
}

func (s *Server) compile(id, src string) (*Response, int) {
	prog, err := s.comp.Get(src)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if diag.IsInternal(err) {
			status = http.StatusInternalServerError
			s.log.Error("Internal compiler error", "id", id, "err", err)
		}
		return &Response{ID: id, Error: NewErrorInfo(err)}, status
	}
	return &Response{ID: id, Instructions: NewInstructions(prog)}, http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
