package geo

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

// ErrOutOfRangeCoordinate is returned when latitude or longitude fall
// outside [-90, 90] / [-180, 180].
var ErrOutOfRangeCoordinate = errors.New("coordinate out of range")

var validate *validator.Validate

func init() {
	validate = validator.New()
	RegisterValidations(validate)
}

// RegisterValidations installs the numeric latitude and longitude rules on v.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("latitude", validateLatitude)
	_ = v.RegisterValidation("longitude", validateLongitude)
}

func validateLatitude(fl validator.FieldLevel) bool {
	return ValidLatitude(fl.Field().Float())
}

func validateLongitude(fl validator.FieldLevel) bool {
	return ValidLongitude(fl.Field().Float())
}

// ValidLatitude reports whether lat is within [-90, 90]. NaN is invalid.
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is within [-180, 180]. NaN is invalid.
func ValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}

// Validate checks that p has in-range coordinates
func Validate(p models.GeoPoint) error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrapf(ErrOutOfRangeCoordinate, "(%f, %f)", p.Lat, p.Lon)
	}
	return nil
}
