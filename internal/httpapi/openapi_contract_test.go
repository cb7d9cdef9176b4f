package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// apiDocument is the subset of api/openapi.yaml the router is checked against.
type apiDocument struct {
	Servers []struct {
		URL string `yaml:"url"`
	} `yaml:"servers"`
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type documentedOperation struct {
	Responses map[string]yaml.Node `yaml:"responses"`
}

var httpMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {},
	http.MethodDelete: {}, http.MethodHead: {}, http.MethodOptions: {},
}

func loadAPIDocument(t *testing.T) apiDocument {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "api", "openapi.yaml")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	var doc apiDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("parse %q: %v", path, err)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "/api" {
		t.Fatalf("expected a single /api server, got %+v", doc.Servers)
	}
	return doc
}

// documentedRoutes maps "METHOD /api/v1/..." to the documented operation.
func documentedRoutes(t *testing.T, doc apiDocument) map[string]documentedOperation {
	t.Helper()
	out := map[string]documentedOperation{}
	for p, ops := range doc.Paths {
		for m, node := range ops {
			method := strings.ToUpper(m)
			if _, ok := httpMethods[method]; !ok {
				continue
			}
			var op documentedOperation
			if err := node.Decode(&op); err != nil {
				t.Fatalf("decode %s %s: %v", method, p, err)
			}
			out[method+" "+trimRoute("/api"+p)] = op
		}
	}
	return out
}

func registeredRoutes(t *testing.T) map[string]struct{} {
	t.Helper()
	h := NewHandler(zerolog.New(io.Discard), nil, Options{})
	t.Cleanup(h.Close)

	mux, ok := h.Router().(*chi.Mux)
	if !ok {
		t.Fatalf("expected *chi.Mux from Router()")
	}
	out := map[string]struct{}{}
	err := chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := httpMethods[method]; !ok {
			return nil
		}
		if route = trimRoute(route); strings.HasPrefix(route, "/api/") {
			out[method+" "+route] = struct{}{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk router: %v", err)
	}
	return out
}

func trimRoute(route string) string {
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}

func TestOpenAPIDoesNotDriftFromRouter(t *testing.T) {
	documented := documentedRoutes(t, loadAPIDocument(t))
	registered := registeredRoutes(t)

	var missing, extra []string
	for k := range documented {
		if _, ok := registered[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range registered {
		if _, ok := documented[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	if len(missing) > 0 || len(extra) > 0 {
		t.Fatalf("api/openapi.yaml and router disagree\ndocumented only: %v\nregistered only: %v", missing, extra)
	}
}

func TestOpenAPI_MapSessionRoutes(t *testing.T) {
	documented := documentedRoutes(t, loadAPIDocument(t))
	registered := registeredRoutes(t)

	const base = "/api/v1/map/sessions"
	want := []string{
		"GET " + base,
		"POST " + base,
		"GET " + base + "/{id}",
		"DELETE " + base + "/{id}",
		"PUT " + base + "/{id}/props",
		"POST " + base + "/{id}/select",
		"POST " + base + "/{id}/click",
		"POST " + base + "/{id}/markers/{propertyId}/click",
		"POST " + base + "/{id}/markers/{propertyId}/hover",
		"POST " + base + "/{id}/resize",
		"POST " + base + "/{id}/keys",
		"POST " + base + "/{id}/search",
		"POST " + base + "/{id}/search/select",
	}
	for _, route := range want {
		if _, ok := registered[route]; !ok {
			t.Fatalf("expected router to register %s", route)
		}
		op, ok := documented[route]
		if !ok {
			t.Fatalf("expected %s in api/openapi.yaml", route)
		}
		if strings.Contains(route, "{id}") {
			if _, ok := op.Responses["404"]; !ok {
				t.Fatalf("expected %s to document 404 for an unknown session", route)
			}
		}
	}

	create := documented["POST "+base]
	if _, ok := create.Responses["503"]; !ok {
		t.Fatalf("expected session creation to document 503 for the session limit")
	}
}
