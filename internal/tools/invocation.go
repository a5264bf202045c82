package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/event"
	"github.com/HerbHall/skillpath/internal/match"
	"github.com/HerbHall/skillpath/internal/skillboost"
)

// invocation is a validated tool call. Each tool has its own variant so
// handlers never see unchecked arguments.
type invocation interface {
	tool() string
	run(ctx context.Context, d *Dispatcher, b *Batch) (any, error)
}

type getSkills struct{}

type generateJourney struct {
	Goal string
}

type searchContent struct {
	Concept string
}

type startLab struct {
	Name string
}

// parseCall validates a call's name and arguments.
func parseCall(c Call) (invocation, error) {
	switch c.Name {
	case ToolGetSkills:
		return getSkills{}, nil
	case ToolGenerateJourney:
		goal, err := requiredString(c, "goal")
		if err != nil {
			return nil, err
		}
		return generateJourney{Goal: goal}, nil
	case ToolSearchContent:
		concept, err := requiredString(c, "concept")
		if err != nil {
			return nil, err
		}
		return searchContent{Concept: concept}, nil
	case ToolStartLab:
		name, err := requiredString(c, "name")
		if err != nil {
			return nil, err
		}
		return startLab{Name: name}, nil
	case "":
		return nil, &ValidationError{Message: "tool name is required"}
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("unknown tool %q", c.Name)}
	}
}

// requiredString extracts a non-blank string field from the call's JSON
// object arguments.
func requiredString(c Call, field string) (string, error) {
	raw := bytes.TrimSpace(c.Args)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", &ValidationError{Tool: c.Name, Message: fmt.Sprintf("%q is required", field)}
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", &ValidationError{Tool: c.Name, Message: "arguments must be a JSON object"}
	}

	v, ok := args[field]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", &ValidationError{Tool: c.Name, Message: fmt.Sprintf("%q is required", field)}
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", &ValidationError{Tool: c.Name, Message: fmt.Sprintf("%q must be a string", field)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Tool: c.Name, Message: fmt.Sprintf("%q must not be empty", field)}
	}
	return s, nil
}

func (getSkills) tool() string       { return ToolGetSkills }
func (generateJourney) tool() string { return ToolGenerateJourney }
func (searchContent) tool() string   { return ToolSearchContent }
func (startLab) tool() string        { return ToolStartLab }

func (getSkills) run(_ context.Context, d *Dispatcher, _ *Batch) (any, error) {
	skills := make([]string, len(d.cfg.Skills))
	copy(skills, d.cfg.Skills)
	return skills, nil
}

func (i generateJourney) run(ctx context.Context, d *Dispatcher, _ *Batch) (any, error) {
	concepts, err := d.paths.GenerateLearningPath(ctx, i.Goal)
	if err != nil {
		return nil, err
	}
	if concepts == nil {
		concepts = []skillboost.Concept{}
	}
	return concepts, nil
}

// SearchRecorded is the payload of event.TopicSearchRecorded.
type SearchRecorded struct {
	SessionID string
	Seq       int
	Query     string
	Titles    []string
}

func (i searchContent) run(ctx context.Context, d *Dispatcher, b *Batch) (any, error) {
	sel, err := d.engine.Search(ctx, b.Session.ID, i.Concept)
	if err != nil {
		return nil, err
	}

	rec := b.Session.History.Record(i.Concept, sel)
	d.metrics.Selection(len(sel))
	d.publish(ctx, event.TopicSearchRecorded, SearchRecorded{
		SessionID: b.Session.ID,
		Seq:       rec.Seq,
		Query:     rec.Query,
		Titles:    titles(rec.Results),
	})
	return rec.Results, nil
}

func titles(sel match.Selection) []string {
	out := make([]string, len(sel))
	for i := range sel {
		out[i] = sel[i].Title
	}
	return out
}

// LaunchResult is the output of a successful start_lab call.
type LaunchResult struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// ContentLaunched is the payload of event.TopicContentLaunched.
type ContentLaunched struct {
	SessionID string
	Query     string
	Title     string
	URL       string
	Score     float64
}

func (i startLab) run(ctx context.Context, d *Dispatcher, b *Batch) (any, error) {
	decision, err := d.engine.Launch(ctx, b.Session.ID, i.Name)
	if err != nil {
		return nil, err
	}
	if !decision.Accepted {
		return nil, &NotFoundError{Query: i.Name, Suggestions: d.engine.Suggest(b.Session.ID, i.Name)}
	}

	entry := decision.Entry
	if b.Opener != nil {
		if err := b.Opener.Open(ctx, entry); err != nil {
			return nil, fmt.Errorf("open %q: %w", entry.URL, err)
		}
	}

	d.logger.Info("content launched",
		zap.String("session_id", b.Session.ID),
		zap.String("title", entry.Title),
		zap.Float64("score", decision.Score),
	)
	d.publish(ctx, event.TopicContentLaunched, ContentLaunched{
		SessionID: b.Session.ID,
		Query:     i.Name,
		Title:     entry.Title,
		URL:       entry.URL,
		Score:     decision.Score,
	})
	return LaunchResult{
		Message: "Successfully open the learning content: " + entry.Title,
		Title:   entry.Title,
		URL:     entry.URL,
	}, nil
}
