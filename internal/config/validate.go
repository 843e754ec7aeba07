package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error reports an out-of-range or malformed configuration value.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

// Validate ensures the configuration is usable. The first failing key is
// returned as *Error.
func (c Config) Validate() error {
	return validateStruct(c, "")
}

// Validate checks the scan settings alone.
func (s Scan) Validate() error {
	return validateStruct(s, "scan")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(value any, prefix string) error {
	err := newValidator().Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}
	fe := verrs[0]
	return &Error{Key: keyOf(fe.Namespace(), prefix), Reason: reason(fe)}
}

// keyOf turns "Config.scan.hash_threshold" into "scan.hash_threshold".
func keyOf(namespace, prefix string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		rest = namespace
	}
	if prefix != "" {
		return prefix + "." + rest
	}
	return rest
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be >= %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s (got %v)", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s] (got %q)", fe.Param(), fe.Value())
	case "required", "min":
		return "must be set"
	case "excludesall":
		return "must be a plain directory name"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
