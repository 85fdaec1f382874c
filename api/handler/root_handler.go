package handler

import (
	"net/http"

	"webstack/internal/dto"

	"github.com/labstack/echo/v4"
)

type RootHandler struct {
	Version string
}

func NewRootHandler(version string) *RootHandler {
	return &RootHandler{Version: version}
}

func (h *RootHandler) GetVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.VersionResponse{Version: h.Version})
}
