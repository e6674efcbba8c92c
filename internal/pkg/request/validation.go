package request

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the booking field rules to gin's validator:
//   - hhmm: 24h wall-clock time, e.g. "09:30"
//   - isodate: calendar date, e.g. "2024-06-10"
//
// It is safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("hhmm", validateClock); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("isodate", validateISODate)
	})
	return registerErr
}

func validateClock(fl validator.FieldLevel) bool {
	return clockPattern.MatchString(fl.Field().String())
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}
