package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/middleware"
	"github.com/noah-isme/sma-event-api/internal/models"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
)

type fakeDashboardSrv struct {
	principalResp *dto.PrincipalDashboardResponse
	principalErr  error
	principalHit  bool
	hodResp       *dto.HODDashboardResponse
	hodErr        error
	hodHit        bool
	overviewResp  *dto.OverviewResponse
	overviewErr   error
	lastClassID   string
}

func (f *fakeDashboardSrv) Principal(context.Context, *models.JWTClaims) (*dto.PrincipalDashboardResponse, bool, error) {
	return f.principalResp, f.principalHit, f.principalErr
}

func (f *fakeDashboardSrv) HOD(_ context.Context, classID string, _ *models.JWTClaims) (*dto.HODDashboardResponse, bool, error) {
	f.lastClassID = classID
	return f.hodResp, f.hodHit, f.hodErr
}

func (f *fakeDashboardSrv) Overview(context.Context, *models.JWTClaims) (*dto.OverviewResponse, error) {
	return f.overviewResp, f.overviewErr
}

func TestDashboardHandlerPrincipalSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		principalResp: &dto.PrincipalDashboardResponse{TotalEvents: 12, ApprovalRate: 75},
		principalHit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/principal", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "p1", Role: models.RolePrincipal})

	handler.Principal(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(12), envelope.Data["totalEvents"])
}

func TestDashboardHandlerPrincipalUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/principal", nil)

	handler.Principal(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerHODRequiresClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/hod", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "h1", Role: models.RoleHOD})

	handler.HOD(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerHODSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		hodResp: &dto.HODDashboardResponse{ClassID: "class-1", DraftReports: 2},
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/hod?classId=class-1", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "h1", Role: models.RoleHOD})

	handler.HOD(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "class-1", service.lastClassID)
}

func TestDashboardHandlerOverviewForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{overviewErr: appErrors.ErrForbidden})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "x1", Role: models.UserRole("VISITOR")})

	handler.Overview(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardHandlerOverviewSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		overviewResp: &dto.OverviewResponse{
			Role:    models.RoleStudent,
			Actions: []dto.OverviewLink{{Label: "Browse events", Path: "/events?status=APPROVED"}},
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
