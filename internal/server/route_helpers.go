package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/marketdesk/internal/handlers"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]RouteHandler

// allowed lists the registered methods, sorted for a stable Allow header
func (m MethodRouter) allowed() string {
	methods := make([]string, 0, len(m))
	for method := range m {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

// RouteByMethod dispatches on r.Method. Unknown methods get a JSON 405
// carrying an Allow header.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	if handler, ok := routes[r.Method]; ok {
		handler(w, r)
		return
	}
	w.Header().Set("Allow", routes.allowed())
	_ = handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// RouteCRUD builds a router from whichever of the four handlers are set
func RouteCRUD(w http.ResponseWriter, r *http.Request, get, post, put, delete RouteHandler) {
	routes := MethodRouter{}
	for method, h := range map[string]RouteHandler{
		http.MethodGet:    get,
		http.MethodPost:   post,
		http.MethodPut:    put,
		http.MethodDelete: delete,
	} {
		if h != nil {
			routes[method] = h
		}
	}
	RouteByMethod(w, r, routes)
}

// RouteResourceCollection: GET lists, POST creates
func RouteResourceCollection(w http.ResponseWriter, r *http.Request, list, create RouteHandler) {
	RouteCRUD(w, r, list, create, nil, nil)
}
