package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hed1ad/flowselect/internal/logstore"
	"github.com/hed1ad/flowselect/pkg/analysis"
	"github.com/hed1ad/flowselect/pkg/partition"
	"github.com/hed1ad/flowselect/pkg/selection"
)

const (
	msgRequired    = "train_percentage is required"
	msgNotNumber   = "train_percentage must be a number"
	msgOutOfRange  = "train_percentage must be between 1 and 100"
	msgBadBody     = "request body must be a JSON object"
	msgLoadFailure = "could not load the dataset; check the storage credentials, bucket name and object name"
	msgCompleted   = "feature analysis completed"
)

var (
	errRequired  = errors.New(msgRequired)
	errNotNumber = errors.New(msgNotNumber)
)

// analyzeResponse is the success body of the analyze endpoint.
type analyzeResponse struct {
	Message         string           `json:"message"`
	InputPercentage float64          `json:"input_percentage"`
	Results         selection.Result `json:"results"`
}

func (s *Server) analyze(c *gin.Context) {
	raw, err := trainPercentageParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pct, err := parsePercentage(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if pct < 1 || pct > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgOutOfRange})
		return
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), pct)
	if err != nil {
		status, msg := errorResponse(err)
		log.Error().Err(err).Float64("train_percentage", pct).Msg("analysis failed")
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if s.publisher != nil {
		s.publisher.Publish(logstore.NewRecord(pct, res))
	}

	c.JSON(http.StatusOK, analyzeResponse{
		Message:         msgCompleted,
		InputPercentage: pct,
		Results:         res,
	})
}

// trainPercentageParam extracts the raw train_percentage value from a JSON
// or form body.
func trainPercentageParam(c *gin.Context) (any, error) {
	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		v, ok := c.GetPostForm("train_percentage")
		if !ok {
			return nil, errRequired
		}
		return v, nil
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		if c.Request.ContentLength == 0 {
			return nil, errRequired
		}
		return nil, errors.New(msgBadBody)
	}
	v, ok := body["train_percentage"]
	if !ok || v == nil {
		return nil, errRequired
	}
	return v, nil
}

// parsePercentage accepts a JSON number or a numeric string.
func parsePercentage(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, errRequired
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, errNotNumber
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = parsed
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return f, nil
}

// errorResponse maps a failed analysis to a status code and public message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrConfiguration), errors.Is(err, analysis.ErrLoad):
		return http.StatusInternalServerError, msgLoadFailure
	case errors.Is(err, partition.ErrPartition):
		return http.StatusInternalServerError, fmt.Sprintf("failed to partition the dataset: %v", err)
	case errors.Is(err, selection.ErrPipeline):
		return http.StatusInternalServerError, fmt.Sprintf("feature selection failed: %v", err)
	default:
		return http.StatusInternalServerError, fmt.Sprintf("analysis failed: %v", err)
	}
}
