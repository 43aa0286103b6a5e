package static

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAppRoutesFallBackToIndex(t *testing.T) {
	for _, path := range []string{"/", "/console", "/display/2"} {
		w := get(t, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: expected html, got %q", path, ct)
		}
		if w.Header().Get("Cache-Control") != "no-cache" {
			t.Fatalf("%s: index must not be cacheable", path)
		}
	}
}

func TestAssetPathsSkipTheFallback(t *testing.T) {
	// the placeholder dist has no assets, so these must 404 instead of
	// being answered with index.html
	for _, path := range []string{"/assets/app.js", "/logo.png", "/favicon.ico"} {
		if w := get(t, path); w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
}
