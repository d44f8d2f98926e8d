package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/dashboard/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	type viewportReport struct {
		Width *int   `json:"width" binding:"required,min=0"`
		Path  string `json:"path" binding:"omitempty,startswith=/"`
	}

	SetupValidator()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req viewportReport
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	post := func(body string) (*httptest.ResponseRecorder, dto.Response) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}

	t.Run("field errors", func(t *testing.T) {
		w, resp := post(`{"width": -1, "path": "dashboard"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		assert.Equal(t, "req-1", resp.Error.RequestID)
		assert.ElementsMatch(t, []dto.ValidationDetail{
			{Field: "width", Message: "Must be at least 0"},
			{Field: "path", Message: "Must start with /"},
		}, resp.Error.Details)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, resp := post(`{"width":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Malformed request body", resp.Error.Message)
		assert.Empty(t, resp.Error.Details)
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"width": 0}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type sample struct {
		Required string `validate:"required"`
		Short    string `validate:"min=3"`
		Kind     string `validate:"oneof=a b"`
	}

	v := validator.New()
	err := v.Struct(sample{Short: "x", Kind: "c"})
	var errs validator.ValidationErrors
	require.ErrorAs(t, err, &errs)

	messages := map[string]string{}
	for _, e := range errs {
		messages[e.Field()] = getValidationMessage(e)
	}
	assert.Equal(t, "This field is required", messages["Required"])
	assert.Equal(t, "Must be at least 3 characters", messages["Short"])
	assert.Equal(t, "Must be one of: a b", messages["Kind"])
}
