package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medlab/medlab/internal/domain/catalog"
	"github.com/medlab/medlab/internal/platform/apperror"
)

type stubTypeRepo struct{}

func (stubTypeRepo) Create(_ context.Context, t *catalog.AnalysisType) error { return nil }
func (stubTypeRepo) GetByID(_ context.Context, _ uuid.UUID) (*catalog.AnalysisType, error) {
	return nil, apperror.NotFound("analysis type not found")
}
func (stubTypeRepo) Update(_ context.Context, _ *catalog.AnalysisType) error { return nil }
func (stubTypeRepo) List(_ context.Context, _ bool, _, _ int) ([]*catalog.AnalysisType, int, error) {
	return nil, 0, nil
}
func (stubTypeRepo) SetActive(_ context.Context, _ uuid.UUID, _ bool) error { return nil }
func (stubTypeRepo) ReferenceCount(_ context.Context, _ uuid.UUID) (int, error) {
	return 0, nil
}

func TestTrailingSlashNormalized(t *testing.T) {
	e := newEcho(zerolog.Nop(), nil)
	public := e.Group("/api/public")
	api := e.Group("/api")
	catalog.NewHandler(catalog.NewService(stubTypeRepo{})).RegisterRoutes(api, public)

	tests := []struct {
		name string
		path string
	}{
		{"bare path", "/api/public/services"},
		{"trailing slash", "/api/public/services/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("GET %s = %d, want 200", tt.path, rec.Code)
			}
		})
	}
}

func TestTrailingSlashNormalized_Post(t *testing.T) {
	e := newEcho(zerolog.Nop(), nil)
	e.POST("/api/analyses/:id/set_status", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/analyses/"+uuid.NewString()+"/set_status/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("POST with trailing slash = %d, want 200", rec.Code)
	}
}
