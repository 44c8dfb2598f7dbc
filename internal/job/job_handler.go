package job

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// Register mounts the queue routes on r.
func (h *JobHandler) Register(r gin.IRouter) {
	r.POST("/jobs", h.Create)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.Get)
	r.GET("/dlq", h.DLQList)
	r.POST("/dlq/:id/retry", h.DLQRetry)
	r.GET("/config", h.ConfigList)
	r.GET("/config/:key", h.ConfigGet)
	r.PUT("/config/:key", h.ConfigSet)
	r.GET("/stats", h.Stats)
}

// Create handles HTTP requests for enqueueing a new job.
// It binds the job spec strictly, delegates to the JobService,
// and returns HTTP 201 with the stored job.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	resp, err := h.service.GetJobByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to list jobs, optionally filtered by the
// state query parameter.
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Query("state"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) DLQList(c *gin.Context) {
	jobs, err := h.service.ListDLQ(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// DLQRetry moves a dead job back to pending and returns it.
func (h *JobHandler) DLQRetry(c *gin.Context) {
	resp, err := h.service.RetryDLQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) ConfigList(c *gin.Context) {
	entries, err := h.service.ListConfig(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *JobHandler) ConfigGet(c *gin.Context) {
	entry, err := h.service.GetConfig(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ConfigSet handles HTTP requests to change one queue setting.
func (h *JobHandler) ConfigSet(c *gin.Context) {
	var body dto.ConfigSetDTO
	if !middleware.Bind(c, &body) {
		return
	}

	entry, err := h.service.SetConfig(c.Request.Context(), c.Param("key"), body.Value)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
