package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"webstack/api/middleware"
	"webstack/internal/database"
	"webstack/internal/dto"
	"webstack/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const HeaderTotalCount = "X-Total-Count"

type TaskHandler struct {
	Tasks    repository.TaskRepository
	Validate *validator.Validate
}

func NewTaskHandler(tasks repository.TaskRepository, validate *validator.Validate) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Validate: validate}
}

func (h *TaskHandler) List(c echo.Context) error {
	skip, limit := parseSkipLimit(c)
	page, err := h.Tasks.List(c.Request().Context(), skip, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	c.Response().Header().Set(HeaderTotalCount, strconv.FormatInt(page.Total, 10))
	return c.JSON(http.StatusOK, dto.TaskResponsesFromEntities(page.Items))
}

func (h *TaskHandler) New(c echo.Context) error {
	var req dto.CreateTaskRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	ctx := c.Request().Context()
	task, err := h.Tasks.New(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	task.Title = req.Title
	task.CreatedAt = time.Now().UTC()

	added, err := h.Tasks.InsertOne(ctx, task)
	if err != nil {
		return writeServiceError(c, err)
	}
	if added == nil {
		return writeServiceError(c, database.ErrNotInserted)
	}
	middleware.LoggerFromContext(c).WithFields(logrus.Fields{
		"task": added.ID.Hex(),
		"seq":  added.SeqID,
	}).Info("new task created")
	return c.JSON(http.StatusCreated, dto.TaskResponseFromEntity(added))
}

func (h *TaskHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if !database.IsValidID(id) {
		return writeError(c, http.StatusBadRequest, errors.New("invalid task id"))
	}
	deleted, err := h.Tasks.DeleteByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if deleted == nil {
		return writeError(c, http.StatusNotFound, errors.New("task not found"))
	}
	return c.JSON(http.StatusOK, dto.TaskResponseFromEntity(deleted))
}

func parseSkipLimit(c echo.Context) (int64, int64) {
	skip, _ := strconv.ParseInt(c.QueryParam("skip"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	return skip, limit
}
