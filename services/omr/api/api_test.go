// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
)

const pageJSON = `{
  "id": 1,
  "interline": 20,
  "systems": [{
    "id": 1,
    "staves": [{"id": 1, "left": 0, "right": 1000, "top": 100, "interline": 20, "header_stop": 100}],
    "parts": [{"id": 1, "staves": [1]}],
    "barlines": [{"x": 500}, {"x": 995}],
    "evaluations": [
      {"shape": "TIME_TWO_FOUR", "box": {"x": 60, "y": 100, "w": 16, "h": 80}, "grade": 0.9},
      {"shape": "QUARTER_REST", "box": {"x": 200, "y": 125, "w": 10, "h": 30}, "grade": 0.8},
      {"shape": "QUARTER_REST", "box": {"x": 300, "y": 125, "w": 10, "h": 30}, "grade": 0.8},
      {"shape": "QUARTER_REST", "box": {"x": 600, "y": 125, "w": 10, "h": 30}, "grade": 0.8}
    ]
  }]
}`

const pageYAML = `id: 1
systems:
  - id: 1
    staves: [{id: 1, left: 0, right: 1000, top: 100, interline: 20}]
    parts: [{id: 1, staves: [1]}]
`

// withManual returns pageJSON with one forced symbol.
func withManual(symbol string) string {
	return strings.Replace(pageJSON, `"evaluations": [`, `"manual": [`+symbol+`],
    "evaluations": [`, 1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	return NewServer(engine.New(config.DefaultConfig()), nil).Router("omr-test")
}

func do(t *testing.T, r http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter()

	w := do(t, r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfig(t *testing.T) {
	w := do(t, newRouter(), http.MethodGet, "/v1/config", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, config.DefaultConfig().Engine.Parallelism, cfg.Engine.Parallelism)
}

func TestPostPage(t *testing.T) {
	r := newRouter()

	t.Run("json", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/v1/pages", "application/json", pageJSON)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res struct {
			RunID     string `json:"run_id"`
			PageID    int    `json:"page_id"`
			Carried   string `json:"carried"`
			Anomalies []struct {
				Stack  string `json:"stack"`
				Excess string `json:"excess"`
			} `json:"anomalies"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Len(t, res.RunID, 12)
		assert.Equal(t, 1, res.PageID)
		assert.Equal(t, "1/2", res.Carried)
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, "-1/4", res.Anomalies[0].Excess)
	})

	t.Run("yaml with carried duration", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/v1/pages?carried=3/4", "application/yaml", pageYAML)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"carried":"3/4"`)
	})

	t.Run("bad carried duration", func(t *testing.T) {
		for _, carried := range []string{"zero", "-1/4", "0", "-1/-9223372036854775808", "1/9223372036854775808"} {
			w := do(t, r, http.MethodPost, "/v1/pages?carried="+carried, "application/yaml", pageYAML)
			assert.Equal(t, http.StatusBadRequest, w.Code, carried)
		}
	})

	t.Run("forced rest completes the measure", func(t *testing.T) {
		body := withManual(`{"shape": "QUARTER_REST", "box": {"x": 750, "y": 125, "w": 10, "h": 30}, "staff": 1}`)
		w := do(t, r, http.MethodPost, "/v1/pages", "application/json", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotContains(t, w.Body.String(), `"anomalies"`)
	})

	t.Run("unsupported forced shape", func(t *testing.T) {
		body := withManual(`{"shape": "CLUTTER", "box": {"x": 750, "y": 125, "w": 10, "h": 30}}`)
		w := do(t, r, http.MethodPost, "/v1/pages", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported shape")
	})

	t.Run("invalid page", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/v1/pages", "application/json", `{"id": 1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid page input")
	})
}

func TestPostBook(t *testing.T) {
	r := newRouter()

	w := do(t, r, http.MethodPost, "/v1/books", "application/json", "["+pageJSON+","+pageJSON+"]")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Pages []json.RawMessage `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Pages, 2)

	w = do(t, r, http.MethodPost, "/v1/books", "application/json", "[]")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/books", "application/json", `[{"id": 1}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
