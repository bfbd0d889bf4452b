package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerJSONFieldNames makes validation errors report json field names.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validationFailed(c *gin.Context, details ...string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"error":   "validation_failed",
		"details": details,
	})
}

// bindJSON decodes the body into dst and writes the error response itself
// when decoding or validation fails.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		bindFailed(c, err)
		return false
	}
	return true
}

// bindQuery is bindJSON for query-string parameters.
func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		bindFailed(c, err)
		return false
	}
	return true
}

func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
	case errors.As(err, &invalid):
		details := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			details = append(details, describe(fe))
		}
		validationFailed(c, details...)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "details": []string{err.Error()}})
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
