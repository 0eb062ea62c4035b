package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/portyard/internal/errs"
)

var (
	containerNumberPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)
	portCodePattern        = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)
	imoPattern             = regexp.MustCompile(`^[0-9]{7}$`)
	typeCodePattern        = regexp.MustCompile(`^[A-Z0-9]{4}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Engine returns the shared validator with the yard-specific tags registered.
func Engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("container_number", matchPattern(containerNumberPattern))
		_ = v.RegisterValidation("port_code", matchPattern(portCodePattern))
		_ = v.RegisterValidation("imo", matchPattern(imoPattern))
		_ = v.RegisterValidation("type_code", matchPattern(typeCodePattern))
		instance = v
	})
	return instance
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Struct validates s and converts the first failure into a validation error.
func Struct(s any) error {
	err := Engine().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errs.Validation(fe.Field(), "failed %s", describe(fe))
	}
	return errs.Validation("", "%s", err.Error())
}

func describe(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

// ContainerNumber reports whether number follows the owner code plus serial format.
func ContainerNumber(number string) bool {
	return containerNumberPattern.MatchString(number)
}
