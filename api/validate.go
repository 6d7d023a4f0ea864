package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/strangelove-ventures/solana-counter-api/solana"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

const (
	bodyKey   = "counter-api.body"
	queryKey  = "counter-api.query"
	paramsKey = "counter-api.params"
)

// Defaulter is implemented by request types that fill omitted fields after binding
type Defaulter interface {
	ApplyDefaults()
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()

	// report fields by their wire name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "uri", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if err := v.RegisterValidation("pubkey", func(fl validator.FieldLevel) bool {
		return solana.IsValidAddress(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("seed", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= solana.MaxSeedLength
	}); err != nil {
		panic(err)
	}

	return v
}

// ValidateBody binds the JSON or URL-encoded request body into T. An empty body binds as {}.
func ValidateBody[T any]() gin.HandlerFunc {
	return validateSection[T](bodyKey, "Request validation failed", func(c *gin.Context, v *T) error {
		b := binding.Default(c.Request.Method, c.ContentType())
		if b == binding.Form {
			return c.ShouldBindWith(v, binding.FormPost)
		}
		err := c.ShouldBindWith(v, b)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})
}

// ValidateQuery binds the query string into T
func ValidateQuery[T any]() gin.HandlerFunc {
	return validateSection[T](queryKey, "Query validation failed", func(c *gin.Context, v *T) error {
		return c.ShouldBindQuery(v)
	})
}

// ValidateParams binds the route params into T
func ValidateParams[T any]() gin.HandlerFunc {
	return validateSection[T](paramsKey, "Params validation failed", func(c *gin.Context, v *T) error {
		return c.ShouldBindUri(v)
	})
}

// Body returns the value stored by ValidateBody
func Body[T any](c *gin.Context) *T {
	return stored[T](c, bodyKey)
}

// Query returns the value stored by ValidateQuery
func Query[T any](c *gin.Context) *T {
	return stored[T](c, queryKey)
}

// Params returns the value stored by ValidateParams
func Params[T any](c *gin.Context) *T {
	return stored[T](c, paramsKey)
}

func stored[T any](c *gin.Context, key string) *T {
	v, ok := c.Get(key)
	if !ok {
		return new(T)
	}
	t, ok := v.(*T)
	if !ok {
		return new(T)
	}
	return t
}

func validateSection[T any](key, message string, bind func(*gin.Context, *T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := new(T)

		if err := bind(c, v); err != nil {
			abortWithError(c, types.NewValidationError(message, bindErrorDetails(err)))
			return
		}

		if d, ok := any(v).(Defaulter); ok {
			d.ApplyDefaults()
		}

		if err := requestValidator.Struct(v); err != nil {
			abortWithError(c, types.NewValidationError(message, validationDetails(err)))
			return
		}

		c.Set(key, v)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bindErrorDetails(err error) []types.ErrorDetail {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []types.ErrorDetail{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("Expected %s, received %s", typeErr.Type.Kind(), typeErr.Value),
		}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []types.ErrorDetail{{Message: "Malformed JSON body"}}
	}

	return []types.ErrorDetail{{Message: err.Error()}}
}

func validationDetails(err error) []types.ErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []types.ErrorDetail{{Message: err.Error()}}
	}

	details := make([]types.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, types.ErrorDetail{
			Field:   fieldPath(fe.Namespace()),
			Message: ruleMessage(fe),
		})
	}
	return details
}

// fieldPath drops the struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "pubkey":
		return "Invalid public key"
	case "seed":
		return fmt.Sprintf("Seed must be at most %d bytes", solana.MaxSeedLength)
	default:
		return fmt.Sprintf("Failed on %s rule", fe.Tag())
	}
}
