package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"webstack/api/middleware"
	"webstack/internal/dto"
	"webstack/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
)

var userProjection = bson.D{{Key: "password", Value: 0}}

type AuthHandler struct {
	Service  *service.AuthService
	Validate *validator.Validate
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:  svc,
		Validate: validate,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	ac, err := authContext(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	ctx := c.Request().Context()
	user, err := h.Service.Authenticate(ctx, req.Username, req.Password, ac.Fingerprint().IP)
	if err != nil {
		return writeServiceError(c, err)
	}
	session, err := h.Service.Login(ctx, ac, user)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LoginResponse{
		Session: dto.SessionResponseFromEntity(session),
		User:    dto.UserResponseFromEntity(user),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ac, err := authContext(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	if _, err := h.Service.Logout(c.Request().Context(), ac, ""); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ac, err := authContext(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	session, err := h.Service.Refresh(c.Request().Context(), ac)
	if err != nil {
		return writeServiceError(c, err)
	}
	if session == nil {
		return writeServiceError(c, service.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, dto.SessionResponseFromEntity(session))
}

func (h *AuthHandler) Me(c echo.Context) error {
	ac, err := authContext(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	user, err := h.Service.UserDetails(c.Request().Context(), ac, userProjection)
	if err != nil {
		return writeServiceError(c, err)
	}
	if user == nil {
		return writeError(c, http.StatusNotFound, errors.New("user not found"))
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func authContext(c echo.Context) (*service.AuthContext, error) {
	ac, ok := middleware.AuthFromContext(c)
	if !ok {
		return nil, service.ErrUnauthorized
	}
	return ac, nil
}

func validate(v *validator.Validate, payload any) error {
	if v == nil {
		return nil
	}
	return v.Struct(payload)
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeError(c echo.Context, status int, err error) error {
	return middleware.WriteError(c, status, middleware.ErrorCode(status), err.Error())
}

func writeServiceError(c echo.Context, err error) error {
	return middleware.RenderError(c, err)
}
