package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin/binding"
)

// strictJSON is gin's JSON binding with unknown fields rejected, so a body
// cannot smuggle server-assigned fields such as author past the request type
type strictJSON struct{}

func (strictJSON) Name() string {
	return "strict-json"
}

func (strictJSON) Bind(req *http.Request, obj any) error {
	if req == nil || req.Body == nil {
		return errors.New("invalid request")
	}

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}

	return binding.Validator.ValidateStruct(obj)
}

// bindingFor picks strict JSON for JSON bodies and gin's default otherwise
func bindingFor(method, contentType string) binding.Binding {
	if contentType == binding.MIMEJSON {
		return strictJSON{}
	}
	return binding.Default(method, contentType)
}
