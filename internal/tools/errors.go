package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/skillpath/internal/skillboost"
)

// notFoundMessage is shown when a launch request matches no content.
const notFoundMessage = "No learning content found on Google Cloud Skill Boost"

// ValidationError reports a malformed invocation: unknown tool, missing or
// mistyped arguments.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Tool == "" {
		return "invalid tool call: " + e.Message
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// NotFoundError reports a launch request whose best match fell below the
// acceptance threshold.
type NotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return notFoundMessage
	}
	return fmt.Sprintf("%s. Did you mean: %s?", notFoundMessage, strings.Join(e.Suggestions, ", "))
}

// responseMessage renders err for the per-invocation error response.
func responseMessage(tool string, err error) string {
	var ve *ValidationError
	var nf *NotFoundError
	var ue *skillboost.UpstreamError
	switch {
	case errors.As(err, &ve), errors.As(err, &nf):
		return err.Error()
	case errors.As(err, &ue):
		return fmt.Sprintf("%s failed: %s request error (%s): %s", tool, ue.Endpoint, ue.Code, ue.Message)
	case errors.Is(err, context.DeadlineExceeded):
		return tool + " timed out"
	case errors.Is(err, context.Canceled):
		return tool + " was cancelled"
	default:
		return fmt.Sprintf("%s failed: %v", tool, err)
	}
}
