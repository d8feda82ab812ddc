package gmail

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/instrumentation"
)

const (
	me = "me"

	// UnreadQuery selects the messages the pipeline ingests.
	UnreadQuery = "is:unread"

	labelListShow   = "labelShow"
	messageListShow = "show"

	// maxPageSize is the largest page the messages.list call accepts.
	maxPageSize = 500
)

// Client wraps the Gmail Users service for a single authenticated mailbox.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

// NewClient creates a Gmail client. Authentication is supplied through opts,
// typically option.WithTokenSource or option.WithHTTPClient.
func NewClient(ctx context.Context, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{
		svc:     svc.Users,
		metrics: metrics,
	}, nil
}

// ListLabels returns all labels in the mailbox keyed by display name.
func (c *Client) ListLabels(ctx context.Context) (map[string]string, error) {
	var labels map[string]string
	err := c.call(ctx, "labels.list", func(ctx context.Context) error {
		res, err := c.svc.Labels.List(me).Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = make(map[string]string, len(res.Labels))
		for _, l := range res.Labels {
			labels[l.Name] = l.Id
		}
		return nil
	})
	return labels, err
}

// CreateLabel creates a label visible in both the label list and the message
// list and returns its id. A nil color lets Gmail pick its default colours.
func (c *Client) CreateLabel(ctx context.Context, name string, color *category.Color) (string, error) {
	label := &gmail.Label{
		Name:                  name,
		LabelListVisibility:   labelListShow,
		MessageListVisibility: messageListShow,
	}
	if color != nil {
		label.Color = &gmail.LabelColor{
			BackgroundColor: color.Background,
			TextColor:       color.Text,
		}
	}

	var id string
	err := c.call(ctx, "labels.create", func(ctx context.Context) error {
		created, err := c.svc.Labels.Create(me, label).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.Id
		return nil
	})
	return id, err
}

// ListUnread returns the ids of up to limit unread messages, newest first.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var ids []string
	err := c.call(ctx, "messages.list", func(ctx context.Context) error {
		res, err := c.svc.Messages.List(me).Q(UnreadQuery).MaxResults(int64(limit)).Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(res.Messages))
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	return ids, err
}

// GetMessage fetches a message in full format.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg *Message
	err := c.call(ctx, "messages.get", func(ctx context.Context) error {
		res, err := c.svc.Messages.Get(me, id).Format("full").Context(ctx).Do()
		if err != nil {
			return err
		}
		msg = NewMessage(res)
		return nil
	})
	return msg, err
}

// AddLabels adds labels to a message. Adding a label twice is a no-op in Gmail.
func (c *Client) AddLabels(ctx context.Context, id string, labelIDs ...string) error {
	return c.call(ctx, "messages.modify", func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(me, id, &gmail.ModifyMessageRequest{
			AddLabelIds: labelIDs,
		}).Context(ctx).Do()
		return err
	})
}

// call runs fn inside a Google API span, records the operation metric and
// wraps any error into an *APIError.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, op)
	defer span.End()

	start := time.Now()
	err := wrapError(op, fn(ctx))

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	instrumentation.SetSpanStatus(span, err)
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))
	return err
}
