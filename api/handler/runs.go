package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slotwatch/history"
	"github.com/use-agent/slotwatch/models"
)

// RunService is what the run handlers need from the scheduler.
type RunService interface {
	Trigger() (string, error)
	CurrentID() string
	Stats() models.RunStats
	History() *history.Store
}

// ListRuns returns a handler for GET /api/v1/runs.
//
// Optional ?limit=N caps the number of summaries, newest first.
func ListRuns(svc RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs := svc.History().List()

		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "limit must be a positive integer",
					},
				})
				return
			}
			if limit < len(runs) {
				runs = runs[:limit]
			}
		}

		resp := models.RunListResponse{
			Runs:  make([]models.RunSummary, 0, len(runs)),
			Total: svc.History().Len(),
		}
		for _, r := range runs {
			resp.Runs = append(resp.Runs, r.Summarize())
		}
		c.JSON(http.StatusOK, resp)
	}
}

// LatestRun returns a handler for GET /api/v1/runs/latest.
func LatestRun(svc RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := svc.History().Latest()
		if !ok {
			c.JSON(http.StatusNotFound, models.RunResponse{
				Success: false,
				Running: svc.CurrentID() != "",
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "no run has completed yet",
				},
			})
			return
		}
		c.JSON(http.StatusOK, models.RunResponse{
			Success: true,
			Run:     r,
			Running: svc.CurrentID() != "",
		})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
//
// A run still in flight answers 202 with running=true.
func GetRun(svc RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if r, ok := svc.History().Get(id); ok {
			c.JSON(http.StatusOK, models.RunResponse{Success: true, Run: r})
			return
		}
		if id != "" && id == svc.CurrentID() {
			c.JSON(http.StatusAccepted, models.RunResponse{Success: true, Running: true})
			return
		}
		c.JSON(http.StatusNotFound, models.RunResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeNotFound,
				Message: "run not found: " + id,
			},
		})
	}
}

// TriggerRun returns a handler for POST /api/v1/runs.
//
// The run starts in the background; poll GET /api/v1/runs/:id for the result.
func TriggerRun(svc RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Trigger()
		if err != nil {
			c.JSON(http.StatusConflict, models.TriggerResponse{
				Accepted: false,
				Error:    toDetail(err),
			})
			return
		}
		c.JSON(http.StatusAccepted, models.TriggerResponse{
			Accepted: true,
			RunID:    id,
		})
	}
}

func toDetail(err error) *models.ErrorDetail {
	var me *models.MonitorError
	if errors.As(err, &me) {
		return me.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeRunInFlight, Message: err.Error()}
}
