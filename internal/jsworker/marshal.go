package jsworker

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/robertkrimen/otto"

	"github.com/scriptedge/scriptedge/internal/apperrors"
)

// marshalRequest renders req as a JSON object literal and evaluates it,
// which otto parses far more reliably than building the equivalent
// object via reflection-driven Otto.ToValue.
func marshalRequest(vm *otto.Otto, req Request) (otto.Value, error) {
	payload := struct {
		Method  string            `json:"method"`
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
		Query   map[string]string `json:"query"`
		Params  map[string]string `json:"params"`
		Body    *string           `json:"body"`
	}{
		Method:  req.Method,
		URL:     req.URL,
		Headers: nonNil(req.Headers),
		Query:   nonNil(req.Query),
		Params:  nonNil(req.Params),
		Body:    req.Body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return otto.Value{}, err
	}
	return vm.Run("(" + string(data) + ")")
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// unmarshalResponse stringifies v via the VM's own JSON.stringify (so
// that whatever shape a handler returns, good or bad, is judged through
// the lens a real caller would see it) and validates it against the
// Response contract in spec.md §3: status is a required integer in
// [0, 65535], headers is a required, possibly-empty map, body is an
// optional string.
func unmarshalResponse(vm *otto.Otto, v otto.Value) (*Response, error) {
	if v.IsUndefined() {
		return nil, apperrors.WorkerShape("handler returned undefined")
	}

	stringified, err := vm.Call("JSON.stringify", nil, v)
	if err != nil {
		return nil, apperrors.WorkerShape("response is not JSON-serializable: " + err.Error())
	}
	if stringified.IsUndefined() {
		return nil, apperrors.WorkerShape("response is not JSON-serializable")
	}
	raw := stringified.String()

	var parsed struct {
		Status  *float64          `json:"status"`
		Headers map[string]string `json:"headers"`
		Body    *string           `json:"body"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperrors.WorkerShape("response is not a JSON object: " + err.Error())
	}

	if parsed.Status == nil {
		return nil, apperrors.WorkerShape(`response missing required field "status"`)
	}
	status := *parsed.Status
	if status != math.Trunc(status) || status < 0 || status > 65535 {
		return nil, apperrors.WorkerShape(fmt.Sprintf("status %v out of range [0,65535]", status))
	}

	if parsed.Headers == nil {
		return nil, apperrors.WorkerShape(`response missing required field "headers"`)
	}

	return &Response{
		Status:  uint16(status),
		Headers: parsed.Headers,
		Body:    parsed.Body,
	}, nil
}
