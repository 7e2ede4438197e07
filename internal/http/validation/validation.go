package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

var setupOnce sync.Once

// UseJSONNames makes gin's validator report fields by their json tag, so
// errors read "customer.phone" rather than "Customer.Phone".
func UseJSONNames() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// FromBindError turns a ShouldBindJSON error into field->message pairs.
func FromBindError(err error) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fieldKey(fe.Namespace())] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		out[te.Field] = "must be a " + te.Type.Kind().String()
		return out
	}

	out["_"] = "Request body is not valid JSON."
	return out
}

// fieldKey drops the root struct name from a validator namespace.
func fieldKey(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "invalid email"
	case "min", "gte":
		return "must be at least " + param
	case "max", "lte":
		return "must be at most " + param
	case "oneof":
		return "must be one of: " + param
	default:
		return "invalid value"
	}
}
