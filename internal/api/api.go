// Package api exposes the registry, trial index, and recorder over HTTP.
//
// The API is a thin layer: handlers bind JSON, call the same operations
// the CLI uses, and translate the record error taxonomy to HTTP statuses.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/recorder"
	"github.com/vigilab/comptrack/internal/registry"
	"github.com/vigilab/comptrack/internal/store"
	"github.com/vigilab/comptrack/internal/trialindex"
)

// Handler carries the service dependencies for the HTTP surface.
type Handler struct {
	Store    *store.Store
	Registry *registry.Registry
	Trials   *trialindex.Index
	Recorder *recorder.Recorder
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health)

	r.POST("/participants", h.RegisterParticipant)
	r.GET("/participants/:id", h.GetParticipant)

	r.POST("/participants/:id/trials", h.RecordTrial)
	r.GET("/participants/:id/trials", h.ListTrials)

	r.POST("/participants/:id/samples", h.AppendSamples)
	r.GET("/participants/:id/samples", h.QuerySamples)
	r.POST("/participants/:id/flush", h.FlushSession)
	r.POST("/participants/:id/close", h.CloseSession)

	r.GET("/participants/:id/metrics", h.Metrics)

	return r
}

// statusFor maps the record error taxonomy to HTTP statuses. Conflicts
// (duplicates, ordering, closed sessions) are 409: the request was well
// formed but collides with recorded state.
func statusFor(err error) int {
	switch model.CodeOf(err) {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeReference:
		return http.StatusNotFound
	case model.ErrCodeDuplicateTrial, model.ErrCodeOrdering, model.ErrCodeSessionClosed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var re *model.RecordError
	if errors.As(err, &re) {
		body["code"] = string(re.Code)
		if re.Field != "" {
			body["field"] = re.Field
		}
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
