package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/recorder"
	"github.com/vigilab/comptrack/internal/registry"
	"github.com/vigilab/comptrack/internal/store"
	"github.com/vigilab/comptrack/internal/trialindex"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "comptrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec, err := recorder.New(context.Background(), st,
		recorder.WithFlushInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close(context.Background()) })

	h := &Handler{
		Store:    st,
		Registry: registry.New(st),
		Trials:   trialindex.New(st),
		Recorder: rec,
	}
	return h.Router(), h
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerTestParticipant(t *testing.T, r *gin.Engine) model.ParticipantID {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/participants", gin.H{
		"gender": "f", "age": 30, "handedness": "right",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p model.Participant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.ID
}

func TestAPI_Health(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_RegisterAndGet(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/participants/%d", pid), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p model.Participant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, pid, p.ID)
	assert.NotEmpty(t, p.UserHash, "userhash is minted server-side")
}

func TestAPI_RegisterValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/participants", gin.H{
		"gender": "f", "age": -1, "handedness": "right",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Equal(t, "age", body["field"])
}

func TestAPI_GetUnknownParticipant(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/participants/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/participants/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Trials(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)
	path := fmt.Sprintf("/participants/%d/trials", pid)

	w := doJSON(t, r, http.MethodPost, path, gin.H{"block_num": 1, "trial_num": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Same coordinate again collides.
	w = doJSON(t, r, http.MethodPost, path, gin.H{"block_num": 1, "trial_num": 1})
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "DUPLICATE_TRIAL", body["code"])

	w = doJSON(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trials []model.Trial
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trials))
	assert.Len(t, trials, 1)
}

func apiSample(ts float64) gin.H {
	return gin.H{
		"timestamp":        ts,
		"buffeting_force":  0.5,
		"additional_force": 0.25,
		"total_force":      0.75,
		"user_input":       0.1,
		"target_position":  0.0,
		"displacement":     0.1,
		"pvt_event":        "none",
	}
}

func TestAPI_AppendFlushQuery(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)
	base := fmt.Sprintf("/participants/%d", pid)

	w := doJSON(t, r, http.MethodPost, base+"/samples",
		[]gin.H{apiSample(0.016), apiSample(0.032), apiSample(0.048)})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp appendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.IDs, 3)

	w = doJSON(t, r, http.MethodPost, base+"/flush", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, base+"/samples?from=0&to=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var samples []model.Sample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &samples))
	require.Len(t, samples, 3)
	assert.Equal(t, resp.IDs[0], samples[0].ID)
}

func TestAPI_AppendOrderingConflict(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)
	path := fmt.Sprintf("/participants/%d/samples", pid)

	w := doJSON(t, r, http.MethodPost, path, []gin.H{apiSample(5.0), apiSample(4.0)})
	require.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ORDERING", body["code"])
	assert.Len(t, body["accepted"], 1, "the first sample was already accepted")
}

func TestAPI_CloseThenAppend(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)
	base := fmt.Sprintf("/participants/%d", pid)

	w := doJSON(t, r, http.MethodPost, base+"/samples", []gin.H{apiSample(0.016)})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/samples", []gin.H{apiSample(0.032)})
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SESSION_CLOSED", body["code"])
}

func TestAPI_Metrics(t *testing.T) {
	r, _ := newTestRouter(t)
	pid := registerTestParticipant(t, r)
	base := fmt.Sprintf("/participants/%d", pid)

	probe := apiSample(1.0)
	probe["pvt_event"] = "response"
	probe["pvt_rt"] = 0.6
	timeout := apiSample(2.0)
	timeout["pvt_event"] = "timeout"

	w := doJSON(t, r, http.MethodPost, base+"/samples",
		[]gin.H{apiSample(0.016), probe, timeout})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodPost, base+"/flush", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, base+"/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.EqualValues(t, 2, m["probes"])
	assert.EqualValues(t, 1, m["timeouts"])
	assert.EqualValues(t, 1, m["lapses"])
	assert.EqualValues(t, 1, m["hypovigilance"])
}

func TestAPI_MetricsUnknownParticipant(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/participants/424242/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
