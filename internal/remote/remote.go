package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// Calendar is the set of calendar operations the sync needs.
type Calendar interface {
	// List returns the managed events inside the lesson window of day.
	List(ctx context.Context, day time.Time) ([]*lesson.Remote, error)
	// Insert creates an event and returns its id.
	Insert(ctx context.Context, ev *gcal.Event) (string, error)
	Update(ctx context.Context, id string, ev *gcal.Event) error
	Delete(ctx context.Context, id string) error
}

// Google implements Calendar on the Google Calendar v3 API.
type Google struct {
	service    *gcal.Service
	calendarID string
	loc        *time.Location
	dayStart   lesson.Clock
	dayEnd     lesson.Clock
}

// Options configures a Google calendar.
type Options struct {
	CalendarID string
	Location   *time.Location
	DayStart   lesson.Clock
	DayEnd     lesson.Clock
}

// NewGoogle creates a Google calendar client. Authentication is supplied by
// the client options, usually option.WithTokenSource.
func NewGoogle(ctx context.Context, opts Options, clientOpts ...option.ClientOption) (*Google, error) {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	service, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return &Google{
		service:    service,
		calendarID: opts.CalendarID,
		loc:        opts.Location,
		dayStart:   opts.DayStart,
		dayEnd:     opts.DayEnd,
	}, nil
}

// List returns the managed single-instance events between the configured
// day start and day end, ordered by start time. Times are requested in the
// configured zone so their offsets match the portal's local times.
func (g *Google) List(ctx context.Context, day time.Time) ([]*lesson.Remote, error) {
	from, to := lesson.DayWindow(day, g.loc, g.dayStart, g.dayEnd)

	call := g.service.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		TimeZone(g.loc.String()).
		SingleEvents(true).
		OrderBy("startTime")

	remotes := make([]*lesson.Remote, 0)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" || !lesson.IsManaged(item.Summary) {
				continue
			}
			remotes = append(remotes, convert(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", day.Format(lesson.DateLayout), err)
	}

	return remotes, nil
}

func (g *Google) Insert(ctx context.Context, ev *gcal.Event) (string, error) {
	created, err := g.service.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("inserting event %q: %w", ev.Summary, err)
	}
	return created.Id, nil
}

func (g *Google) Update(ctx context.Context, id string, ev *gcal.Event) error {
	if _, err := g.service.Events.Update(g.calendarID, id, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	return nil
}

// Delete removes an event. An event that is already gone is not an error.
func (g *Google) Delete(ctx context.Context, id string) error {
	err := g.service.Events.Delete(g.calendarID, id).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}

func convert(item *gcal.Event) *lesson.Remote {
	return &lesson.Remote{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
	}
}

func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
