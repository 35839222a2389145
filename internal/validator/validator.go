package validator

import (
	"github.com/go-playground/validator/v10"

	"homeflow/internal/model"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Custom validators
	v.RegisterValidation("area", validateArea)
	v.RegisterValidation("device_type", validateDeviceType)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func validateArea(fl validator.FieldLevel) bool {
	_, err := model.AreaFromString(fl.Field().String())
	return err == nil
}

func validateDeviceType(fl validator.FieldLevel) bool {
	switch model.DeviceType(fl.Field().String()) {
	case model.DeviceTypeLight, model.DeviceTypeFan, model.DeviceTypeAC:
		return true
	}
	return false
}
