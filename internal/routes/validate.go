package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gitlab.com/derailed/derailed/internal/db"
)

const maxBodySize = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return db.ValidateUsername(fl.Field().String())
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (routes *Routes) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrBadRequest{Msg: "Missing body", Cause: err}
		}
		return &ErrBadRequest{Msg: "Malformed body", Cause: err}
	}
	return routes.validate.Struct(dst)
}
