package controllers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/controllers"
	"github.com/yashrajoria/shopswift-api/models"
)

func setupAuthRouter(svc *mockAuthSvc) *gin.Engine {
	r := newRouter()
	ac := controllers.NewAuthController(svc)
	r.POST("/auth/register", ac.Register)
	r.POST("/auth/login", ac.Login)
	r.POST("/auth/forgot-password", ac.ForgotPassword)
	r.POST("/auth/reset-password", ac.ResetPassword)
	return r
}

func TestRegisterAndLogin(t *testing.T) {
	svc := &mockAuthSvc{resp: &models.AuthResponse{AccessToken: "tok", ExpiresIn: 3600, User: &models.User{ID: 1}}}
	r := setupAuthRouter(svc)

	w := doJSON(r, http.MethodPost, "/auth/register", `{"name":"Asha","email":"asha@example.com","password":"s3cretpass"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"tok"`)

	w = doJSON(r, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.err = apperrors.Unauthorized("invalid email or password")
	w = doJSON(r, http.MethodPost, "/auth/login", `{"email":"asha@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPassword_TokenOnlyWhenExposed(t *testing.T) {
	svc := &mockAuthSvc{}
	r := setupAuthRouter(svc)

	w := doJSON(r, http.MethodPost, "/auth/forgot-password", `{"email":"asha@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "reset_token")

	svc.resetToken = "abc"
	w = doJSON(r, http.MethodPost, "/auth/forgot-password", `{"email":"asha@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reset_token":"abc"`)
}

func TestResetPassword(t *testing.T) {
	svc := &mockAuthSvc{}
	r := setupAuthRouter(svc)

	w := doJSON(r, http.MethodPost, "/auth/reset-password", `{"token":"abc","new_password":"newpass123"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	svc.err = apperrors.Validation("invalid or expired reset token")
	w = doJSON(r, http.MethodPost, "/auth/reset-password", `{"token":"abc","new_password":"newpass123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
