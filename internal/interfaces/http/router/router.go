package router

import (
	"net/http"

	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/erp/treasury/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers a set of routes under the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts route groups under /api/<version>. Middleware added with
// Use guards the API group only, so /health stays unauthenticated.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware applied to every route under the versioned API group
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registered group and answers unknown paths with the
// standard JSON error envelope
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	api.Use(r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
}

// Group is the set of routes of one resource area, e.g. /treasury
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewGroup creates a route group mounted at prefix
func NewGroup(prefix string) *Group {
	return &Group{prefix: prefix}
}

// Use adds middleware to this group
func (g *Group) Use(middleware ...gin.HandlerFunc) *Group {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// GET registers a GET route
func (g *Group) GET(path string, handlers ...gin.HandlerFunc) *Group {
	return g.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (g *Group) POST(path string, handlers ...gin.HandlerFunc) *Group {
	return g.handle(http.MethodPost, path, handlers)
}

// DELETE registers a DELETE route
func (g *Group) DELETE(path string, handlers ...gin.HandlerFunc) *Group {
	return g.handle(http.MethodDelete, path, handlers)
}

func (g *Group) handle(method, path string, handlers []gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// Prefix returns the mount prefix
func (g *Group) Prefix() string {
	return g.prefix
}

// Len returns the number of routes in the group
func (g *Group) Len() int {
	return len(g.routes)
}

// RegisterRoutes implements RouteRegistrar
func (g *Group) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}
