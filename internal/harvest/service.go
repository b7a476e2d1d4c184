// Package harvest drains unread notification mail: it extracts one tracking
// URL per message, marks each page read, and writes the URLs deduplicated by
// thread.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshsymonds/linkharvest/internal/gmail"
	"github.com/joshsymonds/linkharvest/internal/logging"
	"github.com/joshsymonds/linkharvest/internal/rate"
)

// maxBatchModify is the Gmail limit on ids per batchModify call.
const maxBatchModify = 1000

// Spec selects the messages to harvest.
type Spec struct {
	Label    string
	PageSize int // 0 leaves the page size to the API
}

// Record pairs an extracted URL with the thread it came from.
type Record struct {
	URL      string
	ThreadID gmail.ThreadID
}

// Result summarizes a completed run.
type Result struct {
	Pages    int
	Messages int
	URLs     []string
}

// Service runs the harvest loop against Gmail.
type Service struct {
	Client    gmail.Client
	Limiter   rate.Limiter
	Logger    *slog.Logger
	Extractor *Extractor
	Output    Writer
}

// NewService constructs a Service with sane defaults.
func NewService(
	client gmail.Client,
	limiter rate.Limiter,
	logger *slog.Logger,
	extractor *Extractor,
	out Writer,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:    client,
		Limiter:   limiter,
		Logger:    logger,
		Extractor: extractor,
		Output:    out,
	}
}

// BuildQuery returns the unread query for label. Labels containing spaces
// are quoted.
func BuildQuery(label string) gmail.Query {
	label = strings.TrimSpace(label)
	if strings.ContainsAny(label, " \t") {
		label = fmt.Sprintf("%q", label)
	}
	return gmail.Query{Raw: fmt.Sprintf("label:%s is:unread", label)}
}

// Run re-lists the unread query until it comes back empty. Each page is
// fetched message by message and then marked read in one call, so the next
// list starts over with whatever is still unread. Any error aborts the run
// before the output is written.
func (s *Service) Run(ctx context.Context, spec Spec) (Result, error) {
	label := strings.TrimSpace(spec.Label)
	if label == "" {
		return Result{}, fmt.Errorf("label must not be empty")
	}
	if s.Extractor == nil || s.Output == nil {
		return Result{}, fmt.Errorf("harvest service needs an extractor and an output")
	}
	logger := logging.WithOperation(s.Logger, "harvest")
	query := BuildQuery(label)
	logger.InfoContext(ctx, "harvesting", slog.String("query", query.Raw))

	if err := s.checkLabel(ctx, logger, label); err != nil {
		return Result{}, err
	}

	var (
		res     Result
		records []Record
	)
	for {
		page, err := s.listMessages(ctx, query, spec.PageSize)
		if err != nil {
			return Result{}, err
		}
		if len(page.Messages) == 0 {
			break
		}
		res.Pages++

		ids := make([]gmail.MessageID, 0, len(page.Messages))
		for _, ref := range page.Messages {
			url, err := s.extractURL(ctx, ref.ID)
			if err != nil {
				return Result{}, err
			}
			logger.DebugContext(ctx, "extracted url",
				logging.MessageID(string(ref.ID)), logging.ThreadID(string(ref.ThreadID)))
			records = append(records, Record{URL: url, ThreadID: ref.ThreadID})
			ids = append(ids, ref.ID)
		}
		res.Messages += len(ids)

		if err := s.markRead(ctx, ids); err != nil {
			return Result{}, err
		}
		logger.InfoContext(ctx, "page processed", slog.Int("page", res.Pages), logging.Count(len(ids)))
	}

	res.URLs = URLs(DedupeByThread(records))
	logger.InfoContext(ctx, "collected urls", logging.Count(len(res.URLs)), slog.Int("messages", res.Messages))

	if err := s.Output.WriteURLs(res.URLs); err != nil {
		return Result{}, fmt.Errorf("write urls: %w", err)
	}
	logger.InfoContext(ctx, "file written successfully", logging.Path(fmt.Sprint(s.Output)))
	return res, nil
}

// DedupeByThread keeps the first record seen for each thread, in order.
func DedupeByThread(records []Record) []Record {
	seen := make(map[gmail.ThreadID]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ThreadID]; ok {
			continue
		}
		seen[r.ThreadID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// URLs projects records to their URLs. The result is never nil.
func URLs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.URL)
	}
	return out
}

// checkLabel warns when the label does not exist; the query then simply
// matches nothing. The lookup is advisory: a failed labels call is logged
// and the run goes on. Only a limiter error (cancellation) is returned.
func (s *Service) checkLabel(ctx context.Context, logger *slog.Logger, label string) error {
	if err := s.wait(ctx, "rate limit labels"); err != nil {
		return err
	}
	labels, err := s.Client.ListLabels(ctx)
	if err != nil {
		logger.WarnContext(ctx, "label lookup failed; continuing", slog.String("label", label), logging.Err(err))
		return nil
	}
	if _, ok := labels[label]; !ok {
		logger.WarnContext(ctx, "label not found; nothing will match", slog.String("label", label))
	}
	return nil
}

func (s *Service) listMessages(ctx context.Context, query gmail.Query, pageSize int) (gmail.ListPage, error) {
	if err := s.wait(ctx, "rate limit messages"); err != nil {
		return gmail.ListPage{}, err
	}
	page, err := s.Client.List(ctx, query, "", pageSize)
	if err != nil {
		return gmail.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}

func (s *Service) extractURL(ctx context.Context, id gmail.MessageID) (string, error) {
	if err := s.wait(ctx, "rate limit message"); err != nil {
		return "", err
	}
	msg, err := s.Client.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get message %s: %w", id, err)
	}
	return s.Extractor.ExtractMessage(msg)
}

func (s *Service) markRead(ctx context.Context, ids []gmail.MessageID) error {
	ops := gmail.ModifyOps{RemoveLabels: []gmail.LabelID{gmail.LabelUnread}}
	for i := 0; i < len(ids); i += maxBatchModify {
		j := min(i+maxBatchModify, len(ids))
		if err := s.wait(ctx, "rate limit modify"); err != nil {
			return err
		}
		if err := s.Client.BatchModify(ctx, ids[i:j], ops); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}
	return nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
