// Package httpapi serves the roster and attendance over JSON.
package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"edureg/internal/app"
	"edureg/internal/httpmiddleware"
	"edureg/internal/logsvc"
	"edureg/internal/metrics"
	"edureg/internal/report"
	"edureg/internal/student"
)

// Handlers binds the app to gin routes.
type Handlers struct {
	app     *app.App
	log     logsvc.Logger
	metrics *metrics.Metrics
	limiter *httpmiddleware.TokenBucket
}

// New creates handlers. Extraction requests are limited to ratePerMin per
// client.
func New(a *app.App, m *metrics.Metrics, logger logsvc.Logger, ratePerMin int) *Handlers {
	limiter := httpmiddleware.NewTokenBucket(ratePerMin, ratePerMin).OnReject(m.RateLimited.Inc)
	return &Handlers{app: a, log: logger, metrics: m, limiter: limiter}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/students", h.listStudents)
	v1.POST("/students", h.createStudent)
	v1.GET("/students/:id", h.getStudent)
	v1.PUT("/students/:id", h.updateStudent)
	v1.POST("/students/:id/deletion", h.requestDeletion)
	v1.POST("/deletions/:token/confirm", h.confirmDeletion)
	v1.DELETE("/deletions/:token", h.abortDeletion)
	v1.GET("/next-id", h.nextID)

	v1.GET("/attendance", h.report)
	v1.POST("/attendance/:id/:day/cycle", h.cycle)
	v1.POST("/days/:day/present", h.markAllPresent)

	v1.GET("/export/:format", h.export)
	v1.POST("/extract", h.limiter.GinMiddleware(), h.extract)

	v1.GET("/prefs", h.getPrefs)
	v1.PUT("/prefs", h.putPrefs)
	v1.GET("/sync", h.syncState)
}

func (h *Handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeErr := h.app.CheckStorage(ctx)
	extractor := "ok"
	if err := h.app.ExtractorHealth(ctx); err != nil {
		extractor = err.Error()
	}
	status := http.StatusOK
	if storeErr != nil {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    http.StatusText(status),
		"store":     storeErr == nil,
		"sync":      h.app.SyncState(),
		"extractor": extractor,
	})
}

func (h *Handlers) listStudents(c *gin.Context) {
	students := h.app.Students(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"students": students, "count": len(students)})
}

func (h *Handlers) getStudent(c *gin.Context) {
	s, err := h.app.Student(c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handlers) nextID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"studentId": h.app.NextStudentID()})
}

func (h *Handlers) createStudent(c *gin.Context) {
	var draft student.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := h.app.NewForm()
	f.Apply(draft)
	s, err := h.app.Submit(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handlers) updateStudent(c *gin.Context) {
	var draft student.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := h.app.EditForm(c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	f.Apply(draft)
	s, err := h.app.Submit(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handlers) requestDeletion(c *gin.Context) {
	d, err := h.app.RequestDeletion(c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, d)
}

func (h *Handlers) confirmDeletion(c *gin.Context) {
	s, err := h.app.ConfirmDeletion(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": s})
}

func (h *Handlers) abortDeletion(c *gin.Context) {
	if err := h.app.AbortDeletion(c.Param("token")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) report(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.Report(c.Query("q")))
}

func (h *Handlers) cycle(c *gin.Context) {
	day, err := student.ParseWeekday(c.Param("day"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	st, err := h.app.Cycle(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "day": day, "status": st, "label": st.String()})
}

func (h *Handlers) markAllPresent(c *gin.Context) {
	day, err := student.ParseWeekday(c.Param("day"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	n, err := h.app.MarkAllPresent(c.Request.Context(), day)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": day, "marked": n})
}

var contentTypes = map[app.Format]string{
	app.CSV:  "text/csv; charset=utf-8",
	app.XLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// export serves ?kind=student (default) or ?kind=full as an attachment.
func (h *Handlers) export(c *gin.Context) {
	format := app.Format(c.Param("format"))
	kind := report.StudentReport
	if c.Query("kind") == "full" {
		kind = report.FullAudit
	}

	var buf bytes.Buffer
	if err := h.app.Export(&buf, format); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+h.app.ExportFilename(kind, format))
	c.Data(http.StatusOK, contentTypes[format], buf.Bytes())
}

type extractRequest struct {
	Text    string         `json:"text"`
	Current *student.Draft `json:"current,omitempty"`
}

// extract fills a create form from text and returns it without saving.
func (h *Handlers) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := h.app.NewForm()
	defer f.Close()
	if req.Current != nil {
		f.Apply(*req.Current)
	}
	if err := h.app.SmartFill(c.Request.Context(), f, req.Text); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, f.State())
}

func (h *Handlers) getPrefs(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.Preferences())
}

func (h *Handlers) putPrefs(c *gin.Context) {
	p := h.app.Preferences()
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.app.UpdatePreferences(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) syncState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sync": h.app.SyncState()})
}
