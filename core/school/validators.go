package school

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

var (
	classIDTag  = "classid"
	classIDText = "unknown class"

	subjectIDTag  = "subjectid"
	subjectIDText = "unknown subject"

	subjectIDsTag  = "subjectids"
	subjectIDsText = "unknown subject in list"
)

// InitValidators registers catalog-membership validators for class and
// subject references.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(classIDTag, classIDValidation)
	core.RegisterCustomTranslation(validate, translator, classIDTag, classIDText)

	_ = validate.RegisterValidation(subjectIDTag, subjectIDValidation)
	core.RegisterCustomTranslation(validate, translator, subjectIDTag, subjectIDText)

	_ = validate.RegisterValidation(subjectIDsTag, subjectIDsValidation)
	core.RegisterCustomTranslation(validate, translator, subjectIDsTag, subjectIDsText)
}

func classIDValidation(fl validator.FieldLevel) bool {
	_, ok := ClassByID(fl.Field().String())
	return ok
}

func subjectIDValidation(fl validator.FieldLevel) bool {
	_, ok := SubjectByID(fl.Field().String())
	return ok
}

func subjectIDsValidation(fl validator.FieldLevel) bool {
	ids, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	return len(InvalidSubjectIDs(ids)) == 0
}
