package searchlog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/event"
	"github.com/HerbHall/skillpath/internal/tools"
)

// Subscriber is the subscribing half of the event bus.
type Subscriber interface {
	Subscribe(topic string, handler event.Handler) func()
}

// Recorder writes dispatcher events to the repository.
type Recorder struct {
	repo   *Repository
	logger *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(repo *Repository, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Subscribe attaches the recorder to bus and returns a function that detaches it.
func (r *Recorder) Subscribe(bus Subscriber) func() {
	unsubSearch := bus.Subscribe(event.TopicSearchRecorded, r.handleSearch)
	unsubLaunch := bus.Subscribe(event.TopicContentLaunched, r.handleLaunch)
	return func() {
		unsubSearch()
		unsubLaunch()
	}
}

func (r *Recorder) handleSearch(ctx context.Context, e event.Event) {
	var p tools.SearchRecorded
	switch v := e.Payload.(type) {
	case tools.SearchRecorded:
		p = v
	case *tools.SearchRecorded:
		p = *v
	default:
		r.logger.Warn("unexpected payload type for search event")
		return
	}

	_, err := r.repo.InsertSearch(ctx, Search{
		SessionID:  p.SessionID,
		Seq:        p.Seq,
		Query:      p.Query,
		Titles:     p.Titles,
		RecordedAt: stamp(e),
	})
	if err != nil {
		r.logger.Warn("failed to persist search",
			zap.String("session_id", p.SessionID),
			zap.Int("seq", p.Seq),
			zap.Error(err),
		)
	}
}

func (r *Recorder) handleLaunch(ctx context.Context, e event.Event) {
	var p tools.ContentLaunched
	switch v := e.Payload.(type) {
	case tools.ContentLaunched:
		p = v
	case *tools.ContentLaunched:
		p = *v
	default:
		r.logger.Warn("unexpected payload type for launch event")
		return
	}

	_, err := r.repo.InsertLaunch(ctx, Launch{
		SessionID:  p.SessionID,
		Query:      p.Query,
		Title:      p.Title,
		URL:        p.URL,
		Score:      p.Score,
		LaunchedAt: stamp(e),
	})
	if err != nil {
		r.logger.Warn("failed to persist launch",
			zap.String("session_id", p.SessionID),
			zap.String("title", p.Title),
			zap.Error(err),
		)
	}
}

func stamp(e event.Event) time.Time {
	if e.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return e.Timestamp
}
