// Package validate настраивает validator для входящих событий и
// превращает ошибки валидации в человеко-читаемые сообщения.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-webhook/internal/lib/isotime"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
)

// New возвращает валидатор с тегом iso8601 и именами полей из json-тегов.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// Регистрация встроенного тега не может завершиться ошибкой.
	_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		return isotime.Valid(fl.Field().String())
	})
	return v
}

// Struct проверяет структуру и возвращает *models.ValidationError с сообщениями по полям.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return models.NewValidationError(Messages(verrs)...)
	}
	return models.NewValidationError(err.Error())
}

// Messages формирует текст для каждого нарушения.
func Messages(errs validator.ValidationErrors) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "iso8601":
			msgs = append(msgs, fmt.Sprintf("field %s must be an ISO-8601 timestamp", err.Field()))
		case "alphanum":
			msgs = append(msgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "numeric":
			msgs = append(msgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return msgs
}
