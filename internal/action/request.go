package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

const maxBodyBytes = 1 << 20

// parseBody decodes the request values. Numbers are kept as json.Number so
// integer keys survive intact. The object may be flat or wrapped under the
// model name ({"post": {...}}); an empty body yields no values.
//
// A flat body whose only key is an object-valued field named like the model
// reads the same as a wrapped one. Models that name an association or their
// primary key after themselves are never unwrapped, so that field is kept.
func parseBody(r *http.Request, model *domain.Model) (domain.Record, error) {
	if r.Body == nil {
		return domain.Record{}, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Record{}, nil
		}
		return nil, invalidBody(fmt.Sprintf("malformed JSON body: %v", err))
	}
	if dec.More() {
		return nil, invalidBody("body must contain a single JSON object")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidBody("body must be a JSON object")
	}
	if len(obj) == 1 && !ownsField(model, model.Name) {
		if inner, ok := obj[model.Name].(map[string]any); ok {
			obj = inner
		}
	}
	return domain.Record(obj), nil
}

func ownsField(model *domain.Model, name string) bool {
	if model.PrimaryKey == name {
		return true
	}
	_, ok := model.Association(name)
	return ok
}

func invalidBody(msg string) *domain.APIError {
	return domain.ErrInvalidRequest(msg).WithCode(domain.ErrorCodeInvalidBody)
}
