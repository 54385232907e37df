package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/juho05/log"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		log.Fatalf("Failed to register validator translations: %s", err)
	}
}

func decodeBody[T any](r *http.Request) (T, error) {
	var obj T
	err := json.NewDecoder(r.Body).Decode(&obj)
	r.Body.Close()
	return obj, err
}

type invalidField struct {
	Name    string `json:"name"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func findInvalidFields(obj any) []invalidField {
	err := validate.Struct(obj)
	if e, ok := err.(*validator.InvalidValidationError); ok {
		panic(e)
	}

	vErrs, ok := err.(validator.ValidationErrors)
	if ok && len(vErrs) > 0 {
		fields := make([]invalidField, len(vErrs))
		for i, e := range vErrs {
			fields[i] = invalidField{
				Name:    e.Field(),
				Rule:    e.Tag(),
				Message: e.Translate(trans),
			}
		}
		return fields
	}
	return nil
}

func invalidFields(w http.ResponseWriter, fields []invalidField) {
	type response struct {
		Fields []invalidField `json:"fields"`
	}
	respondError(w, ErrInvalidFields, http.StatusUnprocessableEntity, response{
		Fields: fields,
	})
}

func badRequest(w http.ResponseWriter) {
	clientError(w, http.StatusBadRequest)
}

func clientError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func serverError(w http.ResponseWriter, err error) {
	log.Errorf("%s\n%s", err.Error(), debug.Stack())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func serviceUnavailable(w http.ResponseWriter) {
	respondError(w, ErrUnavailable, http.StatusServiceUnavailable, nil)
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	type response struct {
		Error bool `json:"error"`
		Body  any  `json:"body,omitempty"`
	}
	res := response{
		Error: false,
		Body:  data,
	}
	json.NewEncoder(w).Encode(res)
}

func respondError(w http.ResponseWriter, err error, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	type response struct {
		Error   bool   `json:"error"`
		ErrorID string `json:"errorID"`
		Body    any    `json:"body,omitempty"`
	}
	res := response{
		Error:   true,
		ErrorID: err.Error(),
		Body:    data,
	}
	json.NewEncoder(w).Encode(res)
}
