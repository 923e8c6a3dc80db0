package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"power6/internal/model"
	"power6/internal/service"
)

type createTaskRequest struct {
	Title        string               `json:"title"`
	Notes        *string              `json:"notes"`
	Priority     *model.PriorityValue `json:"priority"`
	ScheduledFor *time.Time           `json:"scheduled_for"`
	StreakBound  bool                 `json:"streak_bound"`
	Completed    *bool                `json:"completed"`
	CompletedAt  *time.Time           `json:"completed_at"`
}

func (r createTaskRequest) input() service.TaskInput {
	priority := model.DefaultPriority
	if r.Priority != nil {
		priority = r.Priority.Priority
	}
	return service.TaskInput{
		Title:        r.Title,
		Notes:        r.Notes,
		Priority:     priority,
		ScheduledFor: r.ScheduledFor,
		StreakBound:  r.StreakBound,
		Completed:    r.Completed,
		CompletedAt:  r.CompletedAt,
	}
}

type taskResponse struct {
	model.Task
	DayKey string `json:"day_key"`
}

func newTaskResponse(task model.Task) taskResponse {
	return taskResponse{Task: task, DayKey: task.DayKey()}
}

func newTaskList(tasks []model.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, newTaskResponse(task))
	}
	return out
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListTasks(c *gin.Context) {
	opts := service.ListOptions{Order: c.Query("order")}

	if raw := c.Query("day"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeUnprocessable(c, "day must be YYYY-MM-DD")
			return
		}
		opts.Day = &day
	}
	if raw := c.Query("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			writeUnprocessable(c, "completed must be true or false")
			return
		}
		opts.Completed = &completed
	}
	var ok bool
	if opts.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if opts.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}

	tasks, err := s.tasks.ListTasks(c.Request.Context(), currentUser(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskList(tasks))
}

func (s *Server) handleTodayTasks(c *gin.Context) {
	tasks, err := s.tasks.TodayTasks(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskList(tasks))
}

func (s *Server) handleHistory(c *gin.Context) {
	from, ok := dateQuery(c, "from_date")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to_date")
	if !ok {
		return
	}

	tasks, err := s.tasks.History(c.Request.Context(), currentUser(c), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskList(tasks))
}

func (s *Server) handleGetTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeUnprocessable(c, "invalid JSON body")
		return
	}

	task, err := s.tasks.CreateTask(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(*task))
}

// handlePatchTask serves both PATCH and PUT; only the fields present in the
// body change.
func (s *Server) handlePatchTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeUnprocessable(c, "invalid JSON body")
		return
	}

	task, err := s.tasks.PatchTask(c.Request.Context(), currentUser(c), taskID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (s *Server) handleToggleTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	task, err := s.tasks.ToggleTask(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(c.Request.Context(), currentUser(c), taskID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetStreak(c *gin.Context) {
	streak, err := s.streaks.GetStreak(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, streak)
}

func (s *Server) handleRefreshStreak(c *gin.Context) {
	streak, err := s.streaks.Refresh(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                  true,
		"streak_count":        streak.Count,
		"today_count":         streak.TodayCount,
		"has_completed_today": streak.HasCompletedToday,
		"threshold":           streak.Threshold,
	})
}

func taskIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeUnprocessable(c, key+" must be an integer")
		return 0, false
	}
	return n, true
}

func dateQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeUnprocessable(c, key+" must be YYYY-MM-DD")
		return nil, false
	}
	return &day, true
}

func writeUnprocessable(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
}

// writeError maps service errors onto status codes. Unknown errors are logged
// and hidden behind a generic message.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, service.ErrCapacityExceeded):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		writeUnprocessable(c, verr.Error())
	default:
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
