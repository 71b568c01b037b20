package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quantpulse/scheduler"
)

// PipelineController triggers the fetch-analyze-notify pipeline on
// demand, outside the nightly schedule
type PipelineController struct {
	scheduler *scheduler.Scheduler
}

// NewPipelineController creates a new pipeline controller
func NewPipelineController(jobScheduler *scheduler.Scheduler) *PipelineController {
	return &PipelineController{scheduler: jobScheduler}
}

// Run starts a full pipeline run in the background
// POST /api/v1/analysis/pipeline/run (admin)
func (ctrl *PipelineController) Run(c *gin.Context) {
	if ctrl.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scheduler is not running",
			"code":  "SCHEDULER_UNAVAILABLE",
		})
		return
	}

	go ctrl.scheduler.RunPipelineNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "pipeline started"})
}
