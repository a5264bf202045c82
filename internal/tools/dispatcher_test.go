package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/catalog"
	"github.com/HerbHall/skillpath/internal/event"
	"github.com/HerbHall/skillpath/internal/match"
	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/skillboost"
	"github.com/HerbHall/skillpath/internal/testutil"
	pkgcatalog "github.com/HerbHall/skillpath/pkg/catalog"
)

type fakePaths struct {
	concepts []skillboost.Concept
	err      error
	panics   bool
	goals    []string
	mu       sync.Mutex
}

func (f *fakePaths) GenerateLearningPath(_ context.Context, goal string) ([]skillboost.Concept, error) {
	f.mu.Lock()
	f.goals = append(f.goals, goal)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.concepts, f.err
}

type recordingOpener struct {
	mu      sync.Mutex
	opened  []pkgcatalog.Entry
	failure error
}

func (o *recordingOpener) Open(_ context.Context, e pkgcatalog.Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failure != nil {
		return o.failure
	}
	o.opened = append(o.opened, e)
	return nil
}

type fixture struct {
	dispatcher *Dispatcher
	fetcher    *testutil.Fetcher
	paths      *fakePaths
	bus        *testutil.MockBus
	session    *session.Session
}

func newFixture(t *testing.T, f *testutil.Fetcher, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	ecfg := catalog.DefaultConfig()
	engine := catalog.NewEngine(catalog.NewCache(f, ecfg.FetchTimeout, zap.NewNop(), nil), ecfg, zap.NewNop())
	paths := &fakePaths{}
	bus := testutil.NewMockBus()

	sess, err := session.NewManager(0, zap.NewNop(), nil).Open(context.Background(), "test")
	require.NoError(t, err)

	return &fixture{
		dispatcher: NewDispatcher(cfg, engine, paths, bus, zap.NewNop(), nil),
		fetcher:    f,
		paths:      paths,
		bus:        bus,
		session:    sess,
	}
}

func (fx *fixture) run(t *testing.T, opener Opener, calls ...Call) []Response {
	t.Helper()
	resp, err := fx.dispatcher.HandleBatch(context.Background(), Batch{Session: fx.session, Calls: calls, Opener: opener})
	require.NoError(t, err)
	require.Len(t, resp, len(calls))
	return resp
}

func call(id, name, args string) Call {
	c := Call{ID: id, Name: name}
	if args != "" {
		c.Args = json.RawMessage(args)
	}
	return c
}

func TestHandleBatch_GetSkills(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))

	resp := fx.run(t, nil, call("1", ToolGetSkills, ""))

	assert.Equal(t, "1", resp[0].ID)
	assert.Empty(t, resp[0].Response.Error)
	assert.Equal(t, []string{"Bigquery", "Logging", "Cloud Run"}, resp[0].Response.Output)
	assert.Equal(t, 0, fx.fetcher.Calls(), "get_skills must not fetch the catalog")
}

func TestHandleBatch_SearchRecordsHistory(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))

	resp := fx.run(t, nil, call("s1", ToolSearchContent, `{"concept":"bigquery"}`))
	require.Empty(t, resp[0].Response.Error)

	sel, ok := resp[0].Response.Output.(match.Selection)
	require.True(t, ok, "output type = %T", resp[0].Response.Output)
	require.NotEmpty(t, sel)
	assert.Equal(t, "BigQuery Basics", sel[0].Title)

	fx.run(t, nil, call("s2", ToolSearchContent, `{"concept":"cloud run"}`))

	records := fx.session.History.Entries()
	require.Len(t, records, 2)
	assert.Equal(t, "bigquery", records[0].Query)
	assert.Equal(t, 1, records[0].Seq)
	assert.Equal(t, "cloud run", records[1].Query)
	assert.Equal(t, 2, records[1].Seq)
	assert.Equal(t, 1, fx.fetcher.Calls(), "catalog fetched once per session")

	topics := fx.bus.Topics()
	assert.Equal(t, []string{event.TopicSearchRecorded, event.TopicSearchRecorded}, topics)
	payload, ok := fx.bus.Events()[0].Payload.(SearchRecorded)
	require.True(t, ok)
	assert.Equal(t, fx.session.ID, payload.SessionID)
	assert.Equal(t, "bigquery", payload.Query)
}

func TestHandleBatch_ConcurrentSearchesShareOneFetch(t *testing.T) {
	f := testutil.NewGatedFetcher(testutil.SampleCatalog())
	fx := newFixture(t, f)

	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = call(string(rune('a'+i)), ToolSearchContent, `{"concept":"cloud"}`)
	}

	done := make(chan []Response, 1)
	go func() {
		resp, err := fx.dispatcher.HandleBatch(context.Background(), Batch{Session: fx.session, Calls: calls})
		if err != nil {
			done <- nil
			return
		}
		done <- resp
	}()

	<-f.Started()
	f.Release()

	var resp []Response
	select {
	case resp = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not complete")
	}

	require.Len(t, resp, len(calls))
	for i, r := range resp {
		assert.Equal(t, calls[i].ID, r.ID, "responses keep call order")
		assert.Empty(t, r.Response.Error)
	}
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, len(calls), fx.session.History.Len())
}

func TestHandleBatch_Validation(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))

	tests := []struct {
		name    string
		call    Call
		wantErr string
	}{
		{"unknown tool", call("1", "delete_everything", `{}`), `unknown tool "delete_everything"`},
		{"empty name", call("2", "", `{}`), "tool name is required"},
		{"missing args", call("3", ToolSearchContent, ""), `"concept" is required`},
		{"null args", call("4", ToolStartLab, "null"), `"name" is required`},
		{"args not object", call("5", ToolGenerateJourney, `["x"]`), "arguments must be a JSON object"},
		{"missing field", call("6", ToolSearchContent, `{"query":"x"}`), `"concept" is required`},
		{"null field", call("7", ToolSearchContent, `{"concept":null}`), `"concept" is required`},
		{"wrong type", call("8", ToolStartLab, `{"name":42}`), `"name" must be a string`},
		{"blank", call("9", ToolGenerateJourney, `{"goal":"   "}`), `"goal" must not be empty`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := fx.run(t, nil, tc.call)
			assert.Equal(t, tc.call.ID, resp[0].ID)
			assert.Nil(t, resp[0].Response.Output)
			assert.Contains(t, resp[0].Response.Error, tc.wantErr)
		})
	}
	assert.Equal(t, 0, fx.fetcher.Calls())
	assert.Equal(t, 0, fx.session.History.Len())
}

func TestHandleBatch_StartLab(t *testing.T) {
	t.Run("accepted after search", func(t *testing.T) {
		fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))
		opener := &recordingOpener{}

		fx.run(t, nil, call("s", ToolSearchContent, `{"concept":"bigquery"}`))
		resp := fx.run(t, opener, call("l", ToolStartLab, `{"name":"BigQury Basics"}`))

		require.Empty(t, resp[0].Response.Error)
		res, ok := resp[0].Response.Output.(LaunchResult)
		require.True(t, ok)
		assert.Equal(t, "Successfully open the learning content: BigQuery Basics", res.Message)
		assert.Equal(t, "BigQuery Basics", res.Title)
		require.Len(t, opener.opened, 1)
		assert.Equal(t, res.URL, opener.opened[0].URL)
		assert.Contains(t, fx.bus.Topics(), event.TopicContentLaunched)
	})

	t.Run("no snapshot yet", func(t *testing.T) {
		fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))
		opener := &recordingOpener{}

		resp := fx.run(t, opener, call("l", ToolStartLab, `{"name":"BigQuery Basics"}`))

		assert.Equal(t, notFoundMessage, resp[0].Response.Error)
		assert.Empty(t, opener.opened)
		assert.Equal(t, 0, fx.fetcher.Calls(), "launch does not fetch by default")
	})

	t.Run("below threshold suggests titles", func(t *testing.T) {
		fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))
		opener := &recordingOpener{}

		fx.run(t, nil, call("s", ToolSearchContent, `{"concept":"cloud"}`))
		resp := fx.run(t, opener, call("l", ToolStartLab, `{"name":"Cloud Rn"}`))

		msg := resp[0].Response.Error
		assert.True(t, strings.HasPrefix(msg, notFoundMessage), msg)
		assert.Contains(t, msg, "Did you mean")
		assert.Contains(t, msg, "Cloud Run 101")
		assert.Empty(t, opener.opened)
	})

	t.Run("opener failure", func(t *testing.T) {
		fx := newFixture(t, testutil.NewFetcher(testutil.SampleCatalog()))
		opener := &recordingOpener{failure: errors.New("connection closed")}

		fx.run(t, nil, call("s", ToolSearchContent, `{"concept":"bigquery"}`))
		resp := fx.run(t, opener, call("l", ToolStartLab, `{"name":"BigQuery Basics"}`))

		assert.Contains(t, resp[0].Response.Error, "connection closed")
		assert.NotContains(t, fx.bus.Topics(), event.TopicContentLaunched)
	})
}

func TestHandleBatch_GenerateJourney(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(nil))
	fx.paths.concepts = []skillboost.Concept{{Title: "IAM", EffortPercentage: 20, ImpactPercentage: 40, TimeToLearn: "2h"}}

	resp := fx.run(t, nil, call("j", ToolGenerateJourney, `{"goal":"become a data engineer"}`))

	require.Empty(t, resp[0].Response.Error)
	assert.Equal(t, fx.paths.concepts, resp[0].Response.Output)
	assert.Equal(t, []string{"become a data engineer"}, fx.paths.goals)
}

func TestHandleBatch_FailureIsolation(t *testing.T) {
	f := testutil.NewFetcher(nil)
	f.Err = errors.New("catalog offline")
	fx := newFixture(t, f)
	fx.paths.err = &skillboost.UpstreamError{Endpoint: skillboost.EndpointPath, Code: skillboost.ErrCodeServerError, Message: "HTTP 502"}

	resp := fx.run(t, nil,
		call("search", ToolSearchContent, `{"concept":"bigquery"}`),
		call("skills", ToolGetSkills, ""),
		call("journey", ToolGenerateJourney, `{"goal":"x"}`),
		call("bad", "nope", ""),
	)

	assert.Contains(t, resp[0].Response.Error, "catalog offline")
	assert.Empty(t, resp[1].Response.Error)
	assert.NotNil(t, resp[1].Response.Output)
	assert.Contains(t, resp[2].Response.Error, "HTTP 502")
	assert.Contains(t, resp[2].Response.Error, string(skillboost.ErrCodeServerError))
	assert.Contains(t, resp[3].Response.Error, "unknown tool")
	assert.Equal(t, 0, fx.session.History.Len(), "failed searches are not recorded")
}

func TestHandleBatch_PanicBecomesError(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(nil))
	fx.paths.panics = true

	resp := fx.run(t, nil, call("j", ToolGenerateJourney, `{"goal":"x"}`), call("s", ToolGetSkills, ""))

	assert.Equal(t, ToolGenerateJourney+" failed: internal error", resp[0].Response.Error)
	assert.Empty(t, resp[1].Response.Error)
}

func TestHandleBatch_CallTimeout(t *testing.T) {
	f := testutil.NewGatedFetcher(testutil.SampleCatalog())
	t.Cleanup(f.Release)
	fx := newFixture(t, f, func(c *Config) { c.CallTimeout = 20 * time.Millisecond })

	resp := fx.run(t, nil, call("s", ToolSearchContent, `{"concept":"bigquery"}`), call("k", ToolGetSkills, ""))

	assert.Equal(t, ToolSearchContent+" timed out", resp[0].Response.Error)
	assert.Empty(t, resp[1].Response.Error)
}

func TestHandleBatch_CancelledContext(t *testing.T) {
	f := testutil.NewGatedFetcher(testutil.SampleCatalog())
	t.Cleanup(f.Release)
	fx := newFixture(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.Started()
		cancel()
	}()

	resp, err := fx.dispatcher.HandleBatch(ctx, Batch{
		Session: fx.session,
		Calls:   []Call{call("s", ToolSearchContent, `{"concept":"bigquery"}`)},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	assert.Equal(t, 0, fx.session.History.Len())
}

func TestHandleBatch_SessionCloseAbandonsQueuedCalls(t *testing.T) {
	f := testutil.NewGatedFetcher(testutil.SampleCatalog())
	t.Cleanup(f.Release)

	ecfg := catalog.DefaultConfig()
	cache := catalog.NewCache(f, ecfg.FetchTimeout, zap.NewNop(), nil)
	engine := catalog.NewEngine(cache, ecfg, zap.NewNop())
	paths := &fakePaths{}
	d := NewDispatcher(Config{MaxConcurrency: 1, CallTimeout: time.Minute}, engine, paths, nil, zap.NewNop(), nil)

	sessions := session.NewManager(0, zap.NewNop(), nil)
	sessions.OnClose(cache.Forget)
	sess, err := sessions.Open(context.Background(), "test")
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-f.Started()
		sessions.Close(sess.ID, "client closed")
	}()

	resp, err := d.HandleBatch(sess.Context(), Batch{
		Session: sess,
		Calls: []Call{
			call("a", ToolSearchContent, `{"concept":"bigquery"}`),
			call("b", ToolSearchContent, `{"concept":"cloud run"}`),
			call("c", ToolGenerateJourney, `{"goal":"data engineer"}`),
		},
	})

	<-closed

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	assert.Equal(t, 1, f.Calls(), "queued searches must not fetch again")
	assert.Equal(t, 0, cache.Sessions())
	paths.mu.Lock()
	assert.Empty(t, paths.goals)
	paths.mu.Unlock()
}

func TestHandleBatch_NoSession(t *testing.T) {
	fx := newFixture(t, testutil.NewFetcher(nil))
	_, err := fx.dispatcher.HandleBatch(context.Background(), Batch{})
	assert.Error(t, err)
}

func TestDeclarations(t *testing.T) {
	decls := Declarations()
	require.Len(t, decls, 4)

	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
		assert.NotEmpty(t, d.Description)
	}
	assert.Equal(t, []string{ToolGetSkills, ToolGenerateJourney, ToolSearchContent, ToolStartLab}, names)
	assert.Nil(t, decls[0].Parameters)
	assert.Equal(t, []string{"concept"}, decls[2].Parameters["required"])
}
