// Package runtime wires the Google API client and process-wide defaults.
package runtime

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/linkharvest/internal/gmail"
)

const userMe = "me"

// googleClient adapts *gmail.Service to our small interface.
type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps svc in the narrow gmail.Client interface.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(userMe).Q(q.Raw)
	if pageSize > 0 {
		call = call.MaxResults(int64(pageSize))
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.Messages = append(page.Messages, gc.MessageRef{
			ID:       gc.MessageID(m.Id),
			ThreadID: gc.ThreadID(m.ThreadId),
		})
	}
	return page, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get(userMe, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, err
	}
	return gc.Message{
		ID:       gc.MessageID(msg.Id),
		ThreadID: gc.ThreadID(msg.ThreadId),
		Payload:  toPart(msg.Payload),
	}, nil
}

func (g *googleClient) BatchModify(ctx context.Context, ids []gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.BatchModifyMessagesRequest{Ids: toStrings(ids)}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = labelStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = labelStrings(ops.RemoveLabels)
	}
	if err := g.svc.Users.Messages.BatchModify(userMe, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch modify %d messages: %w", len(ids), err)
	}
	return nil
}

func (g *googleClient) ListLabels(ctx context.Context) (map[string]gc.LabelID, error) {
	lr, err := g.svc.Users.Labels.List(userMe).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]gc.LabelID, len(lr.Labels))
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
	}
	return byName, nil
}

func toPart(p *gmail.MessagePart) gc.Part {
	if p == nil {
		return gc.Part{}
	}
	out := gc.Part{MimeType: p.MimeType}
	if p.Body != nil {
		out.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		out.Parts = append(out.Parts, toPart(child))
	}
	return out
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func labelStrings(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
