package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"repairTracker/internal/attachments"
	"repairTracker/internal/handlers"
	"repairTracker/internal/portal"
	"repairTracker/internal/repository/inmemory"
	"repairTracker/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Task struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Running bool   `json:"running"`
	} `json:"task"`
	Notices []service.Notice `json:"notices"`
}

func realRouter(t *testing.T, opts ...handlers.Option) http.Handler {
	t.Helper()
	store := inmemory.New()
	svc := service.NewTaskService(store, store)
	return newRouter(svc, opts...)
}

func createClientWithJob(t *testing.T, h http.Handler, name, vin string) (string, envelope) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/clients", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	clientID := decode[map[string]any](t, rec)["id"].(string)

	rec = do(t, h, http.MethodPost, "/clients/"+clientID+"/vehicles", map[string]any{"vin": vin, "start_now": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return clientID, decode[envelope](t, rec)
}

func TestRouter_SingleTimerAcrossClients(t *testing.T) {
	h := realRouter(t)

	firstClient, first := createClientWithJob(t, h, "Ada", "1HGCM82633A004352")
	assert.True(t, first.Task.Running)

	_, second := createClientWithJob(t, h, "Grace", "2T1BURHE0JC074156")
	assert.True(t, second.Task.Running)
	require.Len(t, second.Notices, 1)
	assert.Equal(t, service.NoticeAutoPaused, second.Notices[0].Kind)

	rec := do(t, h, http.MethodGet, "/tasks/"+first.Task.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decode[map[string]any](t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/tasks/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.Task.ID, decode[map[string]any](t, rec)["id"])

	rec = do(t, h, http.MethodDelete, "/clients/"+firstClient, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.CodeHasActiveTasks, decode[map[string]any](t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/tasks/"+first.Task.ID+"/bill", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, "/tasks/"+second.Task.ID+"/timer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, true, decode[map[string]any](t, rec)["running"])
}

func TestRouter_Portal(t *testing.T) {
	tokens, err := portal.New("test-secret", time.Hour)
	require.NoError(t, err)
	h := realRouter(t, handlers.WithPortal(tokens))
	clientID, _ := createClientWithJob(t, h, "Ada", "1HGCM82633A004352")

	rec := do(t, h, http.MethodPost, "/clients/"+clientID+"/portal-token", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	issued := decode[map[string]any](t, rec)
	path := issued["path"].(string)
	require.True(t, strings.HasPrefix(path, "/portal/"))

	rec = do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "Ada", view["client"].(map[string]any)["name"])
	assert.Len(t, view["tasks"], 1)

	rec = do(t, h, http.MethodGet, "/portal/not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := portal.New("other-secret", time.Hour)
	require.NoError(t, err)
	forged, _, err := other.Issue(uuid.MustParse(clientID))
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/portal/"+forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PortalDisabled(t *testing.T) {
	h := realRouter(t)
	clientID, _ := createClientWithJob(t, h, "Ada", "1HGCM82633A004352")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/clients/"+clientID+"/portal-token", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/portal/anything", nil).Code)
}

func TestRouter_Attachments(t *testing.T) {
	h := realRouter(t, handlers.WithAttachments(attachments.NewDirStore(t.TempDir())))
	_, job := createClientWithJob(t, h, "Ada", "1HGCM82633A004352")
	base := "/tasks/" + job.Task.ID + "/attachments"

	put := func(name, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, base+"/"+name, strings.NewReader(body))
		req.Header.Set("Content-Type", "image/jpeg")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := put("front.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 10, decode[map[string]any](t, rec)["bytes"])

	assert.Equal(t, http.StatusBadRequest, put(".hidden", "x").Code)

	rec = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"front.jpg"}, decode[[]string](t, rec))
}

func TestRouter_AttachmentsDisabled(t *testing.T) {
	h := realRouter(t)
	_, job := createClientWithJob(t, h, "Ada", "1HGCM82633A004352")

	rec := do(t, h, http.MethodGet, "/tasks/"+job.Task.ID+"/attachments", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
