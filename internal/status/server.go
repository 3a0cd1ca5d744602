package status

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gmat-zalo-bot/internal/catalog"
)

const shutdownTimeout = 10 * time.Second

type categoryStat struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Supported bool   `json:"supported"`
}

type statsResponse struct {
	Total      int            `json:"total"`
	Excluded   string         `json:"excluded"`
	Categories []categoryStat `json:"categories"`
}

// NewRouter serves liveness and catalog statistics for the bot service.
func NewRouter(logger *log.Logger, questions catalog.Catalog) *gin.Engine {
	g := gin.New()
	g.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	g.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	g.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, buildStats(questions))
	})
	return g
}

func buildStats(questions catalog.Catalog) statsResponse {
	resp := statsResponse{
		Total:    questions.Total(),
		Excluded: catalog.Excluded.Code(),
	}
	for _, s := range questions.Stats() {
		resp.Categories = append(resp.Categories, categoryStat{
			Code:      s.Category.Code(),
			Name:      s.Category.String(),
			Count:     s.Count,
			Supported: s.Supported,
		})
	}
	return resp
}

// Serve blocks until ctx is cancelled or the listener fails.
func Serve(ctx context.Context, logger *log.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("status server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}
