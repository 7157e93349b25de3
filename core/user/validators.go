package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

var (
	studentClassTag  = "student_class"
	studentClassText = "only students can belong to a class"
)

// InitValidators registers the user validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, studentClassTag, studentClassText)
}

// userStructValidation checks that a class is only set on students.
func userStructValidation(sl validator.StructLevel) {
	if nu, ok := sl.Current().Interface().(NewUser); ok {
		if nu.ClassID != "" && nu.Role != core.RoleStudent {
			sl.ReportError(nu.ClassID, "class_id", "ClassID", studentClassTag, "")
		}
	}
}
