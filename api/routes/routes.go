package routes

import (
	"net/http"
	"time"

	"webstack/api/handler"
	"webstack/api/middleware"
	"webstack/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Route is one entry of a component's route table.
type Route struct {
	Method     string
	Path       string
	Handler    echo.HandlerFunc
	Middleware []echo.MiddlewareFunc
}

// Component groups routes under a common path prefix.
type Component struct {
	Name   string
	Prefix string
	Routes []Route
}

type Router struct {
	Echo           *echo.Echo
	Root           *handler.RootHandler
	Auth           *handler.AuthHandler
	Tasks          *handler.TaskHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(e *echo.Echo, root *handler.RootHandler, auth *handler.AuthHandler, tasks *handler.TaskHandler, authMiddleware middleware.AuthMiddleware) *Router {
	return &Router{
		Echo:           e,
		Root:           root,
		Auth:           auth,
		Tasks:          tasks,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) Components() []Component {
	requireAuth := r.AuthMiddleware.RequireAuth
	return []Component{
		{
			Name:   "root",
			Prefix: "",
			Routes: []Route{
				{Method: http.MethodGet, Path: "/version", Handler: r.Root.GetVersion},
			},
		},
		{
			Name:   "auth",
			Prefix: "/auth",
			Routes: []Route{
				{Method: http.MethodPost, Path: "/login", Handler: r.Auth.Login, Middleware: []echo.MiddlewareFunc{r.LoginRate.Middleware()}},
				{Method: http.MethodPost, Path: "/logout", Handler: r.Auth.Logout},
				{Method: http.MethodPost, Path: "/refresh", Handler: r.Auth.Refresh, Middleware: []echo.MiddlewareFunc{r.AuthRate.Middleware()}},
				{Method: http.MethodGet, Path: "/me", Handler: r.Auth.Me, Middleware: []echo.MiddlewareFunc{requireAuth}},
			},
		},
		{
			Name:   "task",
			Prefix: "/task",
			Routes: []Route{
				{Method: http.MethodGet, Path: "", Handler: r.Tasks.List},
				{Method: http.MethodPost, Path: "/new", Handler: r.Tasks.New},
				{Method: http.MethodDelete, Path: "/:id", Handler: r.Tasks.Delete, Middleware: []echo.MiddlewareFunc{requireAuth, r.AuthMiddleware.RequireRole(entity.UserRoleAdmin)}},
			},
		},
	}
}

// RegisterRoutes mounts every component under /api behind the given global middleware.
func (r *Router) RegisterRoutes(global ...echo.MiddlewareFunc) {
	api := r.Echo.Group("/api", global...)
	for _, component := range r.Components() {
		group := api.Group(component.Prefix)
		for _, route := range component.Routes {
			group.Add(route.Method, route.Path, route.Handler, route.Middleware...)
		}
	}
}
