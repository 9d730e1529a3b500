package controlplane

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type analyzeRequest struct {
	ProjectPath  string `json:"project_path" binding:"required"`
	AnalysisType string `json:"analysis_type" binding:"omitempty,oneof=structure health dependencies issues"`
}

type executeRequest struct {
	TaskDescription string `json:"task_description" binding:"required"`
	ProjectPath     string `json:"project_path" binding:"required"`
	Context         string `json:"context"`
	Priority        string `json:"priority" binding:"omitempty,oneof=low medium high critical"`
}

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validator report fields by their json tag.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// bindJSON decodes and validates the request body into req. The returned
// error is a *ValidationError, ErrPayloadTooLarge or wraps ErrMalformedRequest.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		// An empty body is validated as an empty object.
		err = binding.Validator.ValidateStruct(req)
	}
	return translateBindError(err)
}

func translateBindError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return ErrPayloadTooLarge
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return newValidationError(fe.Field(), "is required")
		case "oneof":
			return newValidationError(fe.Field(), "must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
		default:
			return newValidationError(fe.Field(), "failed "+fe.Tag()+" validation")
		}
	}

	return errors.Join(ErrMalformedRequest, err)
}
