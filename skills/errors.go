package skills

import "errors"

var (
	ErrSkillNotFound   = errors.New("SKILL.md not found")
	ErrParseFailed     = errors.New("failed to parse SKILL.md")
	ErrMissingName     = errors.New("missing required field: name")
	ErrMissingDesc     = errors.New("missing required field: description")
	ErrInvalidID       = errors.New("invalid skill id")
	ErrIDTooLong       = errors.New("id exceeds 64 characters")
	ErrDescTooLong     = errors.New("description exceeds 1024 characters")
	ErrUnsupportedKind = errors.New("manifest kind must be remote_api or external_workflow")
	ErrMissingEndpoint = errors.New("remote_api manifest requires endpoint")
	ErrMissingWorkflow = errors.New("external_workflow manifest requires workflow_id")
	ErrInvalidMethod   = errors.New("unsupported http method")
)
