package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/pvt"
	"github.com/vigilab/comptrack/internal/registry"
)

func participantID(c *gin.Context) (model.ParticipantID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, model.NewValidationError("id", "participant id must be an integer"))
		return 0, false
	}
	return model.ParticipantID(id), true
}

type registerRequest struct {
	UserHash   string `json:"userhash"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	Handedness string `json:"handedness"`
}

// RegisterParticipant enrolls a participant and returns the stored row.
func (h *Handler) RegisterParticipant(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, model.NewValidationError("body", err.Error()))
		return
	}

	p, err := h.Registry.Register(c.Request.Context(), registry.Enrollment{
		UserHash:   req.UserHash,
		Gender:     req.Gender,
		Age:        req.Age,
		Handedness: req.Handedness,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetParticipant returns one enrolled participant.
func (h *Handler) GetParticipant(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	p, err := h.Registry.Lookup(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type trialRequest struct {
	BlockNum int `json:"block_num"`
	TrialNum int `json:"trial_num"`
}

// RecordTrial records one (block, trial) coordinate.
func (h *Handler) RecordTrial(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var req trialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, model.NewValidationError("body", err.Error()))
		return
	}

	t, err := h.Trials.Record(c.Request.Context(), id, req.BlockNum, req.TrialNum)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListTrials returns the participant's trial index in block, trial order.
func (h *Handler) ListTrials(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	trials, err := h.Trials.List(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, trials)
}

type appendResponse struct {
	IDs []model.SampleID `json:"ids"`
}

// AppendSamples appends a batch of samples to the participant's session.
// Samples are appended in order; on the first failure the already
// accepted IDs are returned alongside the error.
func (h *Handler) AppendSamples(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var samples []model.Sample
	if err := c.ShouldBindJSON(&samples); err != nil {
		abortWithError(c, model.NewValidationError("body", err.Error()))
		return
	}
	if len(samples) == 0 {
		abortWithError(c, model.NewValidationError("body", "sample batch must be non-empty"))
		return
	}

	ids := make([]model.SampleID, 0, len(samples))
	for _, s := range samples {
		sampleID, err := h.Recorder.Append(c.Request.Context(), id, s)
		if err != nil {
			body := gin.H{"error": err.Error(), "accepted": ids}
			if code := model.CodeOf(err); code != "" {
				body["code"] = string(code)
			}
			c.AbortWithStatusJSON(statusFor(err), body)
			return
		}
		ids = append(ids, sampleID)
	}
	c.JSON(http.StatusAccepted, appendResponse{IDs: ids})
}

func rangeBounds(c *gin.Context) (from, to float64, ok bool) {
	var err error
	from, err = strconv.ParseFloat(c.DefaultQuery("from", "0"), 64)
	if err != nil {
		abortWithError(c, model.NewValidationError("from", "from must be a number"))
		return 0, 0, false
	}
	to, err = strconv.ParseFloat(c.DefaultQuery("to", "1e308"), 64)
	if err != nil {
		abortWithError(c, model.NewValidationError("to", "to must be a number"))
		return 0, 0, false
	}
	return from, to, true
}

// QuerySamples streams the persisted samples in [from, to].
func (h *Handler) QuerySamples(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	from, to, ok := rangeBounds(c)
	if !ok {
		return
	}

	cur, err := h.Recorder.QueryRange(c.Request.Context(), id, from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer cur.Close()

	samples := []model.Sample{}
	for cur.Next() {
		samples = append(samples, cur.Sample())
	}
	if err := cur.Err(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

// FlushSession forces a synchronous flush of the participant's buffer.
func (h *Handler) FlushSession(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	if err := h.Recorder.Flush(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "flushed"})
}

// CloseSession closes the participant's session, draining its buffer.
func (h *Handler) CloseSession(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	if err := h.Recorder.CloseSession(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// Metrics computes vigilance metrics over the participant's recorded
// probes, optionally windowed to the most recent N.
func (h *Handler) Metrics(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	from, to, ok := rangeBounds(c)
	if !ok {
		return
	}
	window, err := strconv.Atoi(c.DefaultQuery("window", "0"))
	if err != nil || window < 0 {
		abortWithError(c, model.NewValidationError("window", "window must be a non-negative integer"))
		return
	}
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "0"), 64)
	if err != nil || threshold < 0 {
		abortWithError(c, model.NewValidationError("threshold", "threshold must be a non-negative number"))
		return
	}

	exists, err := h.Registry.Exists(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !exists {
		abortWithError(c, model.NewReferenceError(id))
		return
	}

	samples, err := h.Store.SamplesInRange(c.Request.Context(), id, from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	m := pvt.Compute(samples, pvt.MetricsConfig{LapseThreshold: threshold, Window: window})
	c.JSON(http.StatusOK, m)
}
