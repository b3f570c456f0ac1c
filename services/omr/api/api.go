// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the engine over HTTP.
//
// Routes:
//
//	POST /v1/pages   one page description (JSON, or YAML by Content-Type)
//	POST /v1/books   a JSON array of pages, processed in order
//	GET  /v1/config  the engine configuration
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus metrics
//
// A page may carry the measure duration of its previous page in the
// "carried" query parameter, as a fraction such as "3/4".
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
	"github.com/AleutianAI/AleutianOMR/services/omr/input"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 32 << 20

// Server serves the engine.
type Server struct {
	engine  *engine.Engine
	metrics http.Handler
}

// NewServer creates a server. A nil metrics handler means the default
// Prometheus registry.
func NewServer(e *engine.Engine, metrics http.Handler) *Server {
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	return &Server{engine: e, metrics: metrics}
}

// Router builds the gin router.
func (s *Server) Router(service string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(service))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics))

	v1 := router.Group("/v1")
	v1.GET("/config", s.handleConfig)
	v1.POST("/pages", s.handlePage)
	v1.POST("/books", s.handleBook)
	return router
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Config())
}

func (s *Server) handlePage(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := input.Decode(bytes.NewReader(body), formatOf(c.ContentType()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var carried *rational.Rational
	if v := c.Query("carried"); v != "" {
		r, err := rational.Decode(v)
		if err != nil || !r.Valid() || r.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid carried duration %q", v)})
			return
		}
		carried = &r
	}

	res, err := s.engine.ProcessPage(c.Request.Context(), page, carried)
	s.respond(c, res, err)
}

func (s *Server) handleBook(c *gin.Context) {
	var raw []json.RawMessage
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, MaxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no page"})
		return
	}
	pages := make([]*input.Page, 0, len(raw))
	for i, r := range raw {
		p, err := input.Decode(bytes.NewReader(r), input.FormatJSON)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("page %d: %v", i, err)})
			return
		}
		pages = append(pages, p)
	}

	results, err := s.engine.ProcessBook(c.Request.Context(), pages)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": results})
}

func (s *Server) respond(c *gin.Context, res *engine.PageResult, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, engine.ErrSystemFailed):
		c.JSON(http.StatusUnprocessableEntity, res)
	default:
		s.fail(c, err)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, input.ErrInvalidPage) || errors.Is(err, engine.ErrNilPage) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func formatOf(contentType string) input.Format {
	if strings.Contains(contentType, "yaml") {
		return input.FormatYAML
	}
	return input.FormatJSON
}
