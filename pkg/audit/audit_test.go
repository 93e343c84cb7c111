package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAudit(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func auditHandler(store *Store, cfg *Config, status int) http.Handler {
	mw := Middleware(store, cfg, nil,
		func(r *http.Request) string { return r.Header.Get("X-User") },
		func(r *http.Request) string { return r.Header.Get("X-Request-Id") },
	)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	store := setupAudit(t)
	h := auditHandler(store, DefaultConfig(), http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refs/hosts", nil)
	req.Header.Set("X-User", "alice")
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Actor)
	assert.Equal(t, "refs", events[0].Resource)
	assert.Equal(t, "success", events[0].Outcome)
	assert.Equal(t, http.StatusCreated, events[0].StatusCode)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestMiddlewareIgnoresReads(t *testing.T) {
	store := setupAudit(t)
	h := auditHandler(store, DefaultConfig(), http.StatusOK)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/refs/hosts", nil))

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMiddlewareDeniedOutcome(t *testing.T) {
	store := setupAudit(t)
	h := auditHandler(store, DefaultConfig(), http.StatusForbidden)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/installations/", nil))

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "denied", events[0].Outcome)
	assert.Equal(t, "anonymous", events[0].Actor)
}

func TestMiddlewareSkipsDeniedWhenConfigured(t *testing.T) {
	store := setupAudit(t)
	cfg := DefaultConfig()
	cfg.LogDenied = false
	h := auditHandler(store, cfg, http.StatusForbidden)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/installations/", nil))

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMiddlewareDisabled(t *testing.T) {
	store := setupAudit(t)
	cfg := DefaultConfig()
	cfg.Enabled = false
	h := auditHandler(store, cfg, http.StatusCreated)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/refs/hosts", nil))

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/refs/hosts", "refs"},
		{"/api/v1/installations/", "installations"},
		{"/api/v1/builds/42/status", "builds"},
		{"/health", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resourceFromPath(tt.path), tt.path)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := setupAudit(t)
	ctx := context.Background()

	old := &Event{ID: "a", Actor: "alice", Method: "POST", Path: "/x", Resource: "refs",
		Outcome: "success", StatusCode: 201, CreatedAt: time.Now().Add(-100 * 24 * time.Hour)}
	fresh := &Event{ID: "b", Actor: "alice", Method: "POST", Path: "/x", Resource: "refs",
		Outcome: "success", StatusCode: 201, CreatedAt: time.Now()}
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, fresh))

	deleted, err := store.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("INAU_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("INAU_AUDIT_LOG_DENIED", "false")
	t.Setenv("INAU_AUDIT_ENABLED", "true")

	cfg := ConfigFromEnv()
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.False(t, cfg.LogDenied)
	assert.True(t, cfg.Enabled)
}
