package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bizassist/internal/domain"
	"bizassist/internal/metrics"
)

const (
	ReminderUsage = `To set a reminder, please use the format: /remind "<description>" on <date/time string> (e.g., /remind "Pay rent" on next Friday at 10am)`

	taskLimit = 5
	faqLimit  = 3
)

func reply(text string) (domain.Envelope, bool) {
	return domain.Reply{Text: text}, true
}

// Usage answers a malformed command with the reminder syntax.
func Usage() Handler {
	return func(context.Context, Request) (domain.Envelope, bool) {
		return reply(ReminderUsage)
	}
}

// Reminder forwards a parsed /remind command to the action dispatcher. The
// datetime text is sent verbatim; the workflow resolves it.
func Reminder(d domain.ActionDispatcher, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		if d == nil || !d.Configured() {
			logger.Error("reminder webhook URL is not configured")
			return reply("Sorry, the reminder service is not configured correctly.")
		}
		r := req.Intent.Reminder
		if !looksLikeDate(r.When) {
			logger.Warn("reminder datetime may not be parsable, forwarding as is", "when", r.When)
		}

		res, err := d.DispatchReminder(ctx, domain.Reminder{
			Principal:   req.Principal,
			Description: r.Description,
			When:        r.When,
		})
		switch {
		case err != nil:
			metrics.RemindersDispatched("error").Inc()
			logger.Error("reminder dispatch failed", "error", err)
			return reply("Sorry, I encountered an error while trying to set your reminder.")
		case !res.OK() && res.Message != "":
			metrics.RemindersDispatched("rejected").Inc()
			return reply("Sorry, there was an issue with the reminder service: " + res.Message)
		case !res.OK():
			metrics.RemindersDispatched("rejected").Inc()
			return reply(fmt.Sprintf("Sorry, I couldn't set the reminder. The service responded with status %d.", res.StatusCode))
		case res.Message != "":
			metrics.RemindersDispatched("ok").Inc()
			return reply(res.Message)
		default:
			metrics.RemindersDispatched("ok").Inc()
			return reply(fmt.Sprintf("Reminder for \"%s\" is set for %s.", r.Description, r.When))
		}
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
}

// looksLikeDate is a best-effort check used only for logging.
func looksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Sales reports the tenant's sales for the current calendar month.
func Sales(q domain.SalesQuerier, now func() time.Time, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		from, to := domain.MonthWindow(now())
		sum, err := q.SalesBetween(ctx, req.Principal.TenantID(), from, to)
		if err != nil {
			logger.Error("sales query failed", "tenant", req.Principal.TenantID(), "error", err)
			return reply("I encountered an error while trying to fetch your sales data.")
		}
		if sum.Count == 0 {
			return reply("There are no sales recorded for the current month.")
		}
		return reply(fmt.Sprintf("This month, your total sales are $%s from %d transactions.", formatAmount(sum.Total), sum.Count))
	}
}

// Tasks lists the tenant's next pending tasks.
func Tasks(q domain.TaskQuerier, loc *time.Location, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		tasks, err := q.PendingTasks(ctx, req.Principal.TenantID(), taskLimit)
		if err != nil {
			logger.Error("task query failed", "tenant", req.Principal.TenantID(), "error", err)
			return reply("I encountered an error while trying to fetch your task data.")
		}
		if len(tasks) == 0 {
			return reply("You have no pending tasks. Great job!")
		}

		items := make([]string, len(tasks))
		for i, t := range tasks {
			items[i] = fmt.Sprintf("'%s' due on %s", t.Title, formatDate(t.DueAt.In(loc)))
		}
		summary := strings.Join(items, "; ")

		text := fmt.Sprintf("You have %d pending task(s). ", len(tasks))
		if len(tasks) == 1 {
			text += "It is: " + summary + "."
		} else {
			text += "The next few are: " + summary + "."
		}
		return reply(text)
	}
}

// FAQ answers from the FAQ table. It declines when the search fails or finds
// nothing so the next rules get a chance.
func FAQ(q domain.FAQSearcher, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		terms := req.Intent.Terms
		if len(terms) == 0 {
			return reply("What specific question do you have? I can try to answer from our FAQs.")
		}
		faqs, err := q.SearchFAQs(ctx, terms, faqLimit)
		if err != nil {
			logger.Error("faq search failed", "error", err)
			return nil, false
		}
		if len(faqs) == 0 {
			return nil, false
		}

		var sb strings.Builder
		sb.WriteString("Here's some information I found:\n")
		for _, f := range faqs {
			fmt.Fprintf(&sb, "\nQ: %s\nA: %s\n", f.Question, f.Answer)
		}
		return reply(strings.TrimSpace(sb.String()))
	}
}

// Appointment reports the patient's next upcoming appointment.
func Appointment(q domain.AppointmentQuerier, now func() time.Time, loc *time.Location, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		a, err := q.NextAppointment(ctx, req.Principal.PatientID(), now())
		if err != nil {
			logger.Error("appointment query failed", "patient", req.Principal.PatientID(), "error", err)
			return reply("I encountered an error while trying to check your appointments.")
		}
		if a == nil {
			return reply("You have no upcoming appointments scheduled.")
		}
		reason := a.Reason
		if reason == "" {
			reason = "a check-up"
		}
		start := a.StartsAt.In(loc)
		return reply(fmt.Sprintf("Your next appointment is on %s at %s for \"%s\". Status: %s.",
			formatDate(start), formatClock(start), reason, a.Status))
	}
}

// Availability says whether any doctor is on staff.
func Availability(q domain.StaffQuerier, logger *slog.Logger) Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		doctors, err := q.StaffByRole(ctx, "doctor", 1)
		if err != nil {
			logger.Error("staff query failed", "error", err)
			return reply("I encountered an error while trying to check doctor availability.")
		}
		if len(doctors) == 0 {
			return reply("It seems we currently don't have information on doctor availability. Please contact our clinic directly.")
		}
		return reply("We have doctors available. To book an appointment, please tell me your preferred date and time, or you can use our online booking system. You can also ask me to book an appointment for you by saying something like '/book appointment for next Tuesday at 3pm for a checkup'.")
	}
}
