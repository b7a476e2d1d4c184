package harvest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/linkharvest/internal/gmail"
)

type fakeClient struct {
	pages       []gmail.ListPage
	bodies      map[gmail.MessageID]string
	labels      map[string]gmail.LabelID
	listQueries []string
	listTokens  []string
	pageSizes   []int
	getCalls    []gmail.MessageID
	batches     [][]gmail.MessageID
	batchOps    []gmail.ModifyOps
	listErr     error
	getErr      error
	batchErr    error
	labelsErr   error
}

func (f *fakeClient) List(ctx context.Context, q gmail.Query, pageToken string, pageSize int) (gmail.ListPage, error) {
	_ = ctx
	f.listQueries = append(f.listQueries, q.Raw)
	f.listTokens = append(f.listTokens, pageToken)
	f.pageSizes = append(f.pageSizes, pageSize)
	if f.listErr != nil {
		return gmail.ListPage{}, f.listErr
	}
	if len(f.pages) == 0 {
		return gmail.ListPage{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeClient) Get(ctx context.Context, id gmail.MessageID) (gmail.Message, error) {
	_ = ctx
	f.getCalls = append(f.getCalls, id)
	if f.getErr != nil {
		return gmail.Message{}, f.getErr
	}
	body, ok := f.bodies[id]
	if !ok {
		return gmail.Message{}, fmt.Errorf("unknown message %s", id)
	}
	return gmail.Message{
		ID: id,
		Payload: gmail.Part{
			MimeType: "text/html",
			Data:     base64.URLEncoding.EncodeToString([]byte(body)),
		},
	}, nil
}

func (f *fakeClient) BatchModify(ctx context.Context, ids []gmail.MessageID, ops gmail.ModifyOps) error {
	_ = ctx
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batches = append(f.batches, append([]gmail.MessageID(nil), ids...))
	f.batchOps = append(f.batchOps, ops)
	return nil
}

func (f *fakeClient) ListLabels(ctx context.Context) (map[string]gmail.LabelID, error) {
	_ = ctx
	if f.labelsErr != nil {
		return nil, f.labelsErr
	}
	if f.labels == nil {
		return map[string]gmail.LabelID{"udemy-notifications": "Label_1"}, nil
	}
	return f.labels, nil
}

type countingLimiter struct {
	calls int
	err   error
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	_ = ctx
	c.calls++
	return c.err
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func trackingBody(n string) string {
	return fmt.Sprintf(`<p>New answer</p><a href="https://e2.udemymail.com/ls/click?upn=%s&amp;src=q">View</a>`, n)
}

func trackingURL(n string) string {
	return fmt.Sprintf("https://e2.udemymail.com/ls/click?upn=%s&amp;src=q", n)
}

func ref(id, thread string) gmail.MessageRef {
	return gmail.MessageRef{ID: gmail.MessageID(id), ThreadID: gmail.ThreadID(thread)}
}

func newTestService(t *testing.T, fake *fakeClient) (*Service, string) {
	t.Helper()
	extractor, err := NewExtractor("")
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "urls.js")
	return NewService(fake, nil, slogDiscard(), extractor, FileWriter{Path: out}), out
}

func readURLs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var urls []string
	require.NoError(t, json.Unmarshal(data, &urls))
	return urls
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{label: "udemy-notifications", want: "label:udemy-notifications is:unread"},
		{label: "  padded  ", want: "label:padded is:unread"},
		{label: "My Label", want: `label:"My Label" is:unread`},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.label).Raw)
		})
	}
}

func TestRunEmptyMailbox(t *testing.T) {
	fake := &fakeClient{}
	svc, out := newTestService(t, fake)

	res, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.NoError(t, err)

	assert.Equal(t, []string{"label:udemy-notifications is:unread"}, fake.listQueries)
	assert.Empty(t, fake.getCalls)
	assert.Empty(t, fake.batches)
	assert.Equal(t, 0, res.Pages)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestRunTwoPages(t *testing.T) {
	fake := &fakeClient{
		pages: []gmail.ListPage{
			{Messages: []gmail.MessageRef{ref("m1", "t1"), ref("m2", "t2"), ref("m3", "t1")}},
			{Messages: []gmail.MessageRef{ref("m4", "t3"), ref("m5", "t2")}},
		},
		bodies: map[gmail.MessageID]string{
			"m1": trackingBody("1"),
			"m2": trackingBody("2"),
			"m3": trackingBody("3"),
			"m4": trackingBody("4"),
			"m5": trackingBody("5"),
		},
	}
	svc, out := newTestService(t, fake)

	res, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications", PageSize: 3})
	require.NoError(t, err)

	assert.Equal(t, []gmail.MessageID{"m1", "m2", "m3", "m4", "m5"}, fake.getCalls)
	require.Len(t, fake.batches, 2)
	assert.Equal(t, []gmail.MessageID{"m1", "m2", "m3"}, fake.batches[0])
	assert.Equal(t, []gmail.MessageID{"m4", "m5"}, fake.batches[1])
	for _, ops := range fake.batchOps {
		assert.Equal(t, []gmail.LabelID{gmail.LabelUnread}, ops.RemoveLabels)
		assert.Empty(t, ops.AddLabels)
	}

	// Two full pages plus the terminating empty one, always from the start.
	assert.Len(t, fake.listQueries, 3)
	assert.Equal(t, []string{"", "", ""}, fake.listTokens)
	assert.Equal(t, []int{3, 3, 3}, fake.pageSizes)

	want := []string{trackingURL("1"), trackingURL("2"), trackingURL("4")}
	if diff := cmp.Diff(want, readURLs(t, out)); diff != "" {
		t.Fatalf("written urls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Result{Pages: 2, Messages: 5, URLs: want}, res)
}

func TestRunKeepsFirstURLPerThread(t *testing.T) {
	fake := &fakeClient{
		pages: []gmail.ListPage{
			{Messages: []gmail.MessageRef{ref("a", "shared"), ref("b", "shared")}},
		},
		bodies: map[gmail.MessageID]string{
			"a": trackingBody("first"),
			"b": trackingBody("second"),
		},
	}
	svc, out := newTestService(t, fake)

	_, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.NoError(t, err)
	assert.Equal(t, []string{trackingURL("first")}, readURLs(t, out))
}

func TestRunNoMatchLeavesOutputUntouched(t *testing.T) {
	fake := &fakeClient{
		pages: []gmail.ListPage{
			{Messages: []gmail.MessageRef{ref("good", "t1"), ref("bad", "t2")}},
		},
		bodies: map[gmail.MessageID]string{
			"good": trackingBody("1"),
			"bad":  "<p>no link here</p>",
		},
	}
	svc, out := newTestService(t, fake)
	require.NoError(t, os.WriteFile(out, []byte(`["previous"]`), 0o644))

	_, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.ErrorIs(t, err, ErrNoURL)
	assert.Contains(t, err.Error(), "message bad")

	assert.Empty(t, fake.batches, "page must not be marked read when extraction fails")
	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr)
	assert.Equal(t, `["previous"]`, string(data))
}

func TestRunRemoteErrorsAbortWithoutOutput(t *testing.T) {
	page := []gmail.ListPage{{Messages: []gmail.MessageRef{ref("m1", "t1")}}}
	bodies := map[gmail.MessageID]string{"m1": trackingBody("1")}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fake    *fakeClient
		wantMsg string
	}{
		{name: "list", fake: &fakeClient{listErr: boom}, wantMsg: "list messages"},
		{name: "get", fake: &fakeClient{pages: page, bodies: bodies, getErr: boom}, wantMsg: "get message m1"},
		{name: "batch", fake: &fakeClient{pages: page, bodies: bodies, batchErr: boom}, wantMsg: "mark read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, out := newTestService(t, tt.fake)
			_, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.wantMsg)
			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "output must not be written")
		})
	}
}

func TestRunWarnsOnMissingLabel(t *testing.T) {
	fake := &fakeClient{labels: map[string]gmail.LabelID{"other": "Label_2"}}
	var buf bytes.Buffer
	extractor, err := NewExtractor("")
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "urls.js")
	svc := NewService(fake, nil, slog.New(slog.NewTextHandler(&buf, nil)), extractor, FileWriter{Path: out})

	_, err = svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "label not found")
	assert.Equal(t, []string{}, readURLs(t, out))
}

func TestRunContinuesWhenLabelLookupFails(t *testing.T) {
	fake := &fakeClient{
		labelsErr: errors.New("labels.list 403"),
		pages:     []gmail.ListPage{{Messages: []gmail.MessageRef{ref("m1", "t1")}}},
		bodies:    map[gmail.MessageID]string{"m1": trackingBody("1")},
	}
	var buf bytes.Buffer
	extractor, err := NewExtractor("")
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "urls.js")
	svc := NewService(fake, nil, slog.New(slog.NewTextHandler(&buf, nil)), extractor, FileWriter{Path: out})

	res, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Messages)
	assert.Equal(t, []gmail.MessageID{"m1"}, fake.getCalls)
	assert.Len(t, fake.batches, 1)
	assert.Contains(t, buf.String(), "label lookup failed")
	assert.Equal(t, []string{trackingURL("1")}, readURLs(t, out))
}

func TestRunTrimsLabelForQueryAndLookup(t *testing.T) {
	fake := &fakeClient{}
	var buf bytes.Buffer
	extractor, err := NewExtractor("")
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "urls.js")
	svc := NewService(fake, nil, slog.New(slog.NewTextHandler(&buf, nil)), extractor, FileWriter{Path: out})

	_, err = svc.Run(context.Background(), Spec{Label: "  udemy-notifications \t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"label:udemy-notifications is:unread"}, fake.listQueries)
	assert.NotContains(t, buf.String(), "label not found")
}

func TestRunWaitsOnLimiterForEveryCall(t *testing.T) {
	fake := &fakeClient{
		pages:  []gmail.ListPage{{Messages: []gmail.MessageRef{ref("m1", "t1"), ref("m2", "t2")}}},
		bodies: map[gmail.MessageID]string{"m1": trackingBody("1"), "m2": trackingBody("2")},
	}
	svc, _ := newTestService(t, fake)
	limiter := &countingLimiter{}
	svc.Limiter = limiter

	_, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.NoError(t, err)
	// labels + 2 lists + 2 gets + 1 batch modify
	assert.Equal(t, 6, limiter.calls)
}

func TestRunLimiterErrorAborts(t *testing.T) {
	fake := &fakeClient{}
	svc, _ := newTestService(t, fake)
	svc.Limiter = &countingLimiter{err: context.Canceled}

	_, err := svc.Run(context.Background(), Spec{Label: "udemy-notifications"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.listQueries)
}

func TestRunRejectsEmptyLabel(t *testing.T) {
	svc, _ := newTestService(t, &fakeClient{})
	_, err := svc.Run(context.Background(), Spec{Label: " "})
	assert.Error(t, err)
}

func TestMarkReadChunks(t *testing.T) {
	fake := &fakeClient{}
	svc, _ := newTestService(t, fake)
	ids := make([]gmail.MessageID, 1200)
	for i := range ids {
		ids[i] = gmail.MessageID(fmt.Sprintf("id-%04d", i))
	}

	require.NoError(t, svc.markRead(context.Background(), ids))
	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[0], 1000)
	assert.Len(t, fake.batches[1], 200)
}

func TestDedupeByThread(t *testing.T) {
	records := []Record{
		{URL: "a", ThreadID: "t1"},
		{URL: "b", ThreadID: "t2"},
		{URL: "c", ThreadID: "t1"},
		{URL: "d", ThreadID: "t3"},
		{URL: "e", ThreadID: "t2"},
	}
	want := []Record{
		{URL: "a", ThreadID: "t1"},
		{URL: "b", ThreadID: "t2"},
		{URL: "d", ThreadID: "t3"},
	}
	if diff := cmp.Diff(want, DedupeByThread(records)); diff != "" {
		t.Fatalf("dedupe mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{}, URLs(DedupeByThread(nil)))
}
