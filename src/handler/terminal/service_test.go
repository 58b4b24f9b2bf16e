package terminal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// engineRegistrar adapts *gin.Engine to RouteRegistrar, whose GET/POST
// take a single handler and return nothing.
type engineRegistrar struct{ e *gin.Engine }

func (g engineRegistrar) GET(path string, h gin.HandlerFunc)  { g.e.GET(path, h) }
func (g engineRegistrar) POST(path string, h gin.HandlerFunc) { g.e.POST(path, h) }

func testService(t *testing.T, cfg Config) (*TerminalService, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.ShellCommand = catShell
	svc := NewTerminalService(cfg, embeddedProvider{})
	r := gin.New()
	svc.RegisterHTTP(engineRegistrar{r})
	t.Cleanup(func() { svc.Manager().Drain() })
	return svc, r
}

func TestHandleIndexServesEmbeddedPage(t *testing.T) {
	_, r := testService(t, Config{WebPath: "/terminal", DevMode: true})

	req := httptest.NewRequest(http.MethodGet, "/terminal/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected non-empty embedded page body")
	}
}

func TestHandleMintLeaseRequiresAuthKey(t *testing.T) {
	_, r := testService(t, Config{WebPath: "/terminal", AuthKey: "s3cr3t"})

	req := httptest.NewRequest(http.MethodPost, "/terminal/lease", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/terminal/lease?key=s3cr3t", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", w.Code)
	}
}

func TestReadySmokeTest(t *testing.T) {
	svc, _ := testService(t, Config{WebPath: "/terminal", DevMode: true, Enabled: true})
	if !svc.Ready() {
		t.Fatal("expected Ready() to succeed with a valid shell command")
	}
}
