package skills

import (
	"net/http"
	"regexp"
	"strings"

	registry "github.com/adalundhe/parley/core/skills"
)

const (
	MaxIDLength   = 64
	MaxDescLength = 1024
)

var idPattern = regexp.MustCompile(`^[a-z0-9]+([_-][a-z0-9]+)*$`)

var allowedMethods = map[string]bool{
	"":                 true,
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks a manifest before registration.
func Validate(m Manifest) error {
	if err := validateID(m.ID); err != nil {
		return err
	}
	if m.Name == "" {
		return ErrMissingName
	}
	if m.Description == "" {
		return ErrMissingDesc
	}
	if len(m.Description) > MaxDescLength {
		return ErrDescTooLong
	}

	switch m.Kind {
	case registry.KindRemoteAPI:
		if m.Endpoint == "" {
			return ErrMissingEndpoint
		}
		if !allowedMethods[strings.ToUpper(m.Method)] {
			return ErrInvalidMethod
		}
	case registry.KindExternalWorkflow:
		if m.WorkflowID == "" {
			return ErrMissingWorkflow
		}
	default:
		return ErrUnsupportedKind
	}
	return nil
}

func validateID(id string) error {
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}
