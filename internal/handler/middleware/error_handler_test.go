package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/handler/dto"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandlerMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{license.ErrMalformedInput, http.StatusBadRequest, "MALFORMED_INPUT"},
		{fmt.Errorf("%w: checksum mismatch", license.ErrMalformedInput), http.StatusBadRequest, "MALFORMED_INPUT"},
		{license.ErrDeviceBanned, http.StatusForbidden, "DEVICE_BANNED"},
		{license.ErrDeviceMismatch, http.StatusForbidden, "DEVICE_MISMATCH"},
		{license.ErrAlreadyBoundElsewhere, http.StatusConflict, "ALREADY_BOUND_ELSEWHERE"},
		{license.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("bind license: %w: connection reset", license.ErrStorage), http.StatusInternalServerError, "STORAGE_FAILURE"},
		{fmt.Errorf("%w: \"YEARLY\"", ierr.ErrUnknownTier), http.StatusBadRequest, "UNKNOWN_TIER"},
		{fmt.Errorf("%w: bad body", ierr.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{ierr.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{ierr.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{ierr.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ierr.ErrConflict, http.StatusConflict, "CONFLICT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorHandlerMiddleware(zap.NewNop()))
			router.GET("/", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			var resp dto.APIErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestErrorHandlerValidationDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type body struct {
		LicenseKey string `json:"license_key" binding:"required"`
		TierCode   string `json:"tier_code" binding:"omitempty,len=4"`
	}

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop()))
	router.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		}
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tier_code":"WEEKLY"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Code    string           `json:"code"`
		Details []dto.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	require.Len(t, resp.Details, 2)
	assert.Equal(t, "LicenseKey", resp.Details[0].Field)
	assert.Contains(t, resp.Details[1].Message, "exactly 4")
}
