package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/service"
)

type auditStub struct {
	entries []*models.AuditLog
	err     error
}

func (a *auditStub) Create(_ context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return a.err
}

func withClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
		c.Next()
	}
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/exams/:id/process", handlers...)
	return r
}

func serve(r *gin.Engine) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/exams/exam-1/process", nil))
	return rec
}

func ok(c *gin.Context) { c.Status(http.StatusAccepted) }

func TestRequireRoles(t *testing.T) {
	admins := RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	assert.Equal(t, http.StatusAccepted, serve(newEngine(withClaims(models.RoleAdmin), admins, ok)).Code)
	assert.Equal(t, http.StatusForbidden, serve(newEngine(withClaims(models.RoleViewer), admins, ok)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(newEngine(admins, ok)).Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	repo := &auditStub{}
	rec := serve(newEngine(withClaims(models.RoleAdmin), Audit(repo, nil, models.AuditActionProcess, "exam"), ok))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.AuditActionProcess, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "user-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "exam-1", *entry.ResourceID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, "/exams/:id/process", details["path"])
}

func TestAuditSkipsFailuresAndToleratesWriteErrors(t *testing.T) {
	repo := &auditStub{err: errors.New("db down")}
	failing := func(c *gin.Context) { c.AbortWithStatus(http.StatusConflict) }

	serve(newEngine(withClaims(models.RoleAdmin), Audit(repo, nil, models.AuditActionProcess, "exam"), failing))
	assert.Empty(t, repo.entries)

	rec := serve(newEngine(withClaims(models.RoleAdmin), Audit(repo, nil, models.AuditActionProcess, "exam"), ok))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, repo.entries, 1)
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestJWTAttachesClaims(t *testing.T) {
	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "secret"})
	token, _, err := auth.IssueToken(models.UserInfo{ID: "user-9", Role: models.RoleAnalyst})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen *models.JWTClaims
	r.GET("/x", JWT(auth), func(c *gin.Context) {
		seen, _ = c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-9", seen.UserID)

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

type recordedRequest struct {
	method, route string
	status        int
}

type requestRecorder struct{ seen []recordedRequest }

func (r *requestRecorder) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, recordedRequest{method: method, route: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &requestRecorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/exams/:id/locations", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/exams/exam-1/locations", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, []recordedRequest{
		{method: http.MethodGet, route: "/exams/:id/locations", status: http.StatusOK},
		{method: http.MethodGet, route: "unmatched", status: http.StatusNotFound},
	}, rec.seen)
}
