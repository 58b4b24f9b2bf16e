package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupBenchmarkRouter wraps SetupRouter with benchmark mode
// configuration and no terminal subsystem wired (HTTP-surface
// benchmarks only; PTY-spawning benchmarks live in the terminal
// package's own tests since they need a real shell).
func setupBenchmarkRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	return SetupRouter(nil, true, false)
}

func BenchmarkHealthEndpoint(b *testing.B) {
	router := setupBenchmarkRouter()
	w := httptest.NewRecorder()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		router.ServeHTTP(w, req)
	}
}

func BenchmarkRootEndpoint(b *testing.B) {
	router := setupBenchmarkRouter()
	w := httptest.NewRecorder()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		router.ServeHTTP(w, req)
	}
}
