package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"twexport/internal/config"
	apierrors "twexport/internal/errors"
	"twexport/pkg/contracts/domain"
)

var securityIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{4,6}$`)

// RequestValidator checks an ExportRequest against struct tags and the
// configured range limits.
type RequestValidator struct {
	validate *validator.Validate
	limits   config.ExportConfig
	loc      *time.Location
	now      func() time.Time
	floor    time.Time
}

// NewRequestValidator creates a validator. loc decides what "today" means.
func NewRequestValidator(limits config.ExportConfig, loc *time.Location) *RequestValidator {
	v := validator.New()
	_ = v.RegisterValidation("security_id", isSecurityID)
	_ = v.RegisterValidation("iso8601", isISO8601)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if loc == nil {
		loc = config.LoadLocation(limits.Timezone)
	}
	floor, _ := time.ParseInLocation(domain.DateLayout, config.InstitutionalDataFloor, loc)

	return &RequestValidator{
		validate: v,
		limits:   limits,
		loc:      loc,
		now:      time.Now,
		floor:    floor,
	}
}

// Today returns the current calendar date in the validator's location.
func (v *RequestValidator) Today() time.Time {
	y, m, d := v.now().In(v.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.loc)
}

// Validate returns warnings for acceptable requests, or a VALIDATION_FAILED
// APIError wrapping ErrInvalidRequest listing every violated field.
func (v *RequestValidator) Validate(req domain.ExportRequest) ([]string, error) {
	if err := v.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, apierrors.ErrValidationFailed.WithCause(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		}
		fields := make([]apierrors.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, apierrors.ValidationError{Field: fe.Field(), Message: formatFieldError(fe)})
		}
		return nil, invalid(fields)
	}

	start, end, err := req.Range(v.loc)
	if err != nil {
		return nil, invalid([]apierrors.ValidationError{{Field: "start_date", Message: err.Error()}})
	}

	var (
		fields   []apierrors.ValidationError
		warnings []string
	)

	if start.After(end) {
		fields = append(fields, apierrors.ValidationError{
			Field:   "start_date",
			Message: "start_date must not be after end_date",
		})
	}
	if end.After(v.Today()) {
		fields = append(fields, apierrors.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be in the future",
		})
	}

	if req.IncludeInstitutional {
		if start.Before(v.floor) {
			fields = append(fields, apierrors.ValidationError{
				Field:   "start_date",
				Message: fmt.Sprintf("institutional data is only available from %s", config.InstitutionalDataFloor),
			})
		}
		span := daysBetween(start, end)
		switch {
		case span > v.limits.InstitutionalMaxDays:
			fields = append(fields, apierrors.ValidationError{
				Field: "end_date",
				Message: fmt.Sprintf("institutional range of %d days exceeds the %d day limit",
					span, v.limits.InstitutionalMaxDays),
			})
		case span > v.limits.InstitutionalWarnDays:
			warnings = append(warnings, fmt.Sprintf(
				"institutional range of %d days needs one exchange request per weekday and will take a while",
				span))
		}
	}

	if len(fields) > 0 {
		return nil, invalid(fields)
	}
	return warnings, nil
}

func invalid(fields []apierrors.ValidationError) error {
	return apierrors.NewValidationErrors(fields).WithCause(ErrInvalidRequest)
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func isSecurityID(fl validator.FieldLevel) bool {
	return securityIDPattern.MatchString(fl.Field().String())
}

func isISO8601(fl validator.FieldLevel) bool {
	_, err := time.Parse(domain.DateLayout, fl.Field().String())
	return err == nil
}

func formatFieldError(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", "))
	case "iso8601":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	case "security_id":
		return fmt.Sprintf("%s must be 4 to 6 letters or digits", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
