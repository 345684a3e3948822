package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouter_WithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	metering := NewDomainGroup("metering", "/metering")
	metering.GET("/usage", func(c *gin.Context) {
		c.String(http.StatusOK, "usage")
	})

	r.Register(metering)
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/metering/usage", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "usage", w.Body.String())
}

func TestRouter_Use(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	// Group middleware must run before registrar routes but not on
	// routes outside /api/v1.
	r.Use(func(c *gin.Context) {
		c.Header("X-Group-Middleware", "applied")
		c.Next()
	})

	metering := NewDomainGroup("metering", "/metering")
	metering.GET("/usage", func(c *gin.Context) {
		c.String(http.StatusOK, "usage")
	})
	r.Register(metering)

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/metering/usage", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "applied", w.Header().Get("X-Group-Middleware"))

	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Group-Middleware"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("carries name and prefix", func(t *testing.T) {
		g := NewDomainGroup("plans", "/plans")
		assert.Equal(t, "plans", g.Name())
		assert.Equal(t, "/plans", g.Prefix())
	})

	t.Run("registers all HTTP methods", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("plans", "/plans")

		handler := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
		g.GET("", handler).
			POST("", handler).
			PUT("/:code", handler).
			PATCH("/:code", handler).
			DELETE("/:code", handler)

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		tests := []struct {
			method string
			path   string
		}{
			{"GET", "/api/v1/plans"},
			{"POST", "/api/v1/plans"},
			{"PUT", "/api/v1/plans/starter"},
			{"PATCH", "/api/v1/plans/starter"},
			{"DELETE", "/api/v1/plans/starter"},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, "%s %s should be routed", tt.method, tt.path)
		}
	})

	t.Run("applies group middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("metering", "/metering")

		g.Use(func(c *gin.Context) {
			c.Header("X-Scope", "metering")
			c.Next()
		})
		g.GET("/usage", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("GET", "/api/v1/metering/usage", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, "metering", w.Header().Get("X-Scope"))
	})

	t.Run("nests subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("metering", "/metering")

		snapshots := g.Group("snapshots", "/snapshots")
		snapshots.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "snapshot list")
		})

		notifications := g.Group("notifications", "/notifications")
		notifications.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "notification list")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req1 := httptest.NewRequest("GET", "/api/v1/metering/snapshots", nil)
		w1 := httptest.NewRecorder()
		engine.ServeHTTP(w1, req1)
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, "snapshot list", w1.Body.String())

		req2 := httptest.NewRequest("GET", "/api/v1/metering/notifications", nil)
		w2 := httptest.NewRecorder()
		engine.ServeHTTP(w2, req2)
		assert.Equal(t, http.StatusOK, w2.Code)
		assert.Equal(t, "notification list", w2.Body.String())
	})
}

func TestRouter_MultipleRegistrars(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	metering := NewDomainGroup("metering", "/metering")
	metering.GET("/usage", func(c *gin.Context) {
		c.String(http.StatusOK, "usage")
	})

	plans := NewDomainGroup("plans", "/plans")
	plans.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "plans")
	})

	r.Register(metering).Register(plans)
	r.Setup()

	req1 := httptest.NewRequest("GET", "/api/v1/metering/usage", nil)
	w1 := httptest.NewRecorder()
	engine.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "usage", w1.Body.String())

	req2 := httptest.NewRequest("GET", "/api/v1/plans", nil)
	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "plans", w2.Body.String())
}
