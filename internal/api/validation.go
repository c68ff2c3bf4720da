package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	requestValidator = validator.New()
	textPolicy       = bluemonday.StrictPolicy()
)

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	return validateStruct(dst)
}

func validateStruct(dst any) error {
	if err := requestValidator.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := strings.ToLower(first.Field())
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "email":
				return fmt.Errorf("invalid email format")
			case "min":
				return fmt.Errorf("%s is too short", field)
			case "max":
				return fmt.Errorf("%s is too long", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// sanitizeText strips all markup from user supplied text. Entities are
// decoded before sanitizing so encoded tags are stripped too; the result is
// HTML-escaped text and must never be unescaped again.
func sanitizeText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(html.UnescapeString(s)))
}
