package schedule

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

var (
	weekdayTag  = "weekday"
	weekdayText = "invalid day of week, expected one of monday..saturday"

	clockTag  = "clock"
	clockText = "invalid time, expected HH:MM"

	roomTypeTag  = "room_type"
	roomTypeText = "invalid room type"
)

// InitValidators registers the schedule validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)

	_ = validate.RegisterValidation(clockTag, clockValidation)
	core.RegisterCustomTranslation(validate, translator, clockTag, clockText)

	_ = validate.RegisterValidation(roomTypeTag, roomTypeValidation)
	core.RegisterCustomTranslation(validate, translator, roomTypeTag, roomTypeText)
}

func weekdayValidation(fl validator.FieldLevel) bool {
	return Weekday(fl.Field().String()).Valid()
}

func clockValidation(fl validator.FieldLevel) bool {
	_, err := ParseClock(fl.Field().String())
	return err == nil
}

func roomTypeValidation(fl validator.FieldLevel) bool {
	return RoomType(fl.Field().String()).Valid()
}
