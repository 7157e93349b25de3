package journal

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

var (
	attendanceStatusTag  = "attendance_status"
	attendanceStatusText = "invalid status, expected one of present, absent, late, excused"
)

// InitValidators registers the journal validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(attendanceStatusTag, attendanceStatusValidation)
	core.RegisterCustomTranslation(validate, translator, attendanceStatusTag, attendanceStatusText)
}

func attendanceStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
