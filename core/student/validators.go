package student

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/dormportal/core"
)

// RegisterValidators registers the struct level validations of report forms.
func RegisterValidators(validate *validator.Validate) {
	validate.RegisterStructValidation(reportStructValidation, NewReport{}, UpdateReport{})
}

// reportStructValidation checks that a provided rating is on the rating scale; a missing one is fine.
func reportStructValidation(sl validator.StructLevel) {
	switch r := sl.Current().Interface().(type) {
	case NewReport:
		validateRating(r.Rating.Int, r.Rating.Valid, sl)
	case UpdateReport:
		validateRating(r.Rating.Int, r.Rating.Valid, sl)
	}
}

func validateRating(rating int, valid bool, sl validator.StructLevel) {
	if valid && !core.ValidRating(rating) {
		sl.ReportError(rating, "rating", "Rating", core.RatingTag, "")
	}
}
