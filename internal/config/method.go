package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HTTPMethod is the closed set of methods a RouteEntry may declare.
type HTTPMethod string

const (
	MethodGET     HTTPMethod = "GET"
	MethodHEAD    HTTPMethod = "HEAD"
	MethodPOST    HTTPMethod = "POST"
	MethodPUT     HTTPMethod = "PUT"
	MethodPATCH   HTTPMethod = "PATCH"
	MethodDELETE  HTTPMethod = "DELETE"
	MethodOPTIONS HTTPMethod = "OPTIONS"
	MethodTRACE   HTTPMethod = "TRACE"
	MethodCONNECT HTTPMethod = "CONNECT"
)

var validMethods = map[HTTPMethod]bool{
	MethodGET: true, MethodHEAD: true, MethodPOST: true, MethodPUT: true,
	MethodPATCH: true, MethodDELETE: true, MethodOPTIONS: true,
	MethodTRACE: true, MethodCONNECT: true,
}

// ParseMethod case-insensitively matches s against the closed HTTPMethod
// set, returning an error for anything outside it.
func ParseMethod(s string) (HTTPMethod, error) {
	m := HTTPMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !validMethods[m] {
		return "", fmt.Errorf("invalid HTTP method %q", s)
	}
	return m, nil
}

// UnmarshalYAML implements case-insensitive, closed-set decoding for YAML
// scalars.
func (m *HTTPMethod) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
