package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/inzighted/report-service/internal/domain/report"
)

// SetupValidator registers the custom binding rules. Call once at
// startup, before the router handles traffic.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// Report error fields by their wire names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})

	// "testid" accepts anything NormalizeTestID accepts: "overall",
	// a number, or a non-digit prefix followed by a number.
	v.RegisterValidation("testid", func(fl validator.FieldLevel) bool {
		_, err := report.NormalizeTestID(fl.Field().String())
		return err == nil
	})
}
