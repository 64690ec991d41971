package web

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/formrelay/internal/adapter/driving/web/viewmodel"
)

// htmlWriter writes template fragments and keeps the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// Layout wraps body in the full HTML page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><link rel="stylesheet" href="/static/app.css"></head><body><main class="container">`)
		hw.component(ctx, body)
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

// Dashboard renders the relay target, the operator description and the
// recent dispatch history.
func Dashboard(vm viewmodel.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.raw(`<header class="target"><h1>formrelay</h1><p>Dispatching <code>`)
		hw.text(vm.Workflow)
		hw.raw(`</code> on <code>`)
		hw.text(vm.Target)
		hw.raw(`</code> at <code>`)
		hw.text(vm.Ref)
		hw.raw(`</code></p></header>`)

		if vm.DescriptionHTML != "" {
			hw.raw(`<section class="description">`)
			hw.component(ctx, templ.Raw(vm.DescriptionHTML))
			hw.raw(`</section>`)
		}

		hw.raw(`<section class="counts">`)
		writeCount(hw, "dispatched", vm.Counts.Dispatched)
		writeCount(hw, "failed", vm.Counts.Failed)
		writeCount(hw, "skipped", vm.Counts.Skipped)
		writeCount(hw, "duplicate", vm.Counts.Duplicate)
		hw.raw(`</section>`)

		if len(vm.Dispatches) == 0 {
			hw.raw(`<p class="empty">No submissions received yet.</p>`)
			return hw.err
		}

		hw.raw(`<table class="dispatches"><thead><tr>`)
		hw.raw(`<th>#</th><th>Received</th><th>Submitted</th><th>Submission</th><th>Start</th><th>End</th><th>Status</th><th>HTTP</th><th>Source</th><th></th>`)
		hw.raw(`</tr></thead><tbody>`)
		for _, row := range vm.Dispatches {
			hw.component(ctx, dispatchRow(row, vm.CSRFToken))
		}
		hw.raw(`</tbody></table>`)

		return hw.err
	})
}

func writeCount(hw *htmlWriter, status string, n int) {
	hw.raw(`<span class="count status-`)
	hw.text(status)
	hw.raw(`">`)
	hw.text(status)
	hw.raw(`: `)
	hw.raw(strconv.Itoa(n))
	hw.raw(`</span>`)
}

func dispatchRow(row viewmodel.DispatchRowViewModel, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.raw(`<tr class="status-`)
		hw.text(row.Status)
		hw.raw(`"><td>`)
		hw.raw(strconv.FormatInt(row.ID, 10))
		hw.raw(`</td><td>`)
		hw.text(row.CreatedAt)
		hw.raw(`</td><td>`)
		hw.text(row.SubmittedAt)
		hw.raw(`</td><td><code>`)
		hw.text(row.SubmissionID)
		hw.raw(`</code></td><td>`)
		hw.text(row.Start)
		hw.raw(`</td><td>`)
		hw.text(row.End)
		hw.raw(`</td><td>`)
		hw.text(row.Status)
		if row.Error != "" {
			hw.raw(`<div class="error">`)
			hw.text(row.Error)
			hw.raw(`</div>`)
		}
		hw.raw(`</td><td>`)
		if row.StatusCode > 0 {
			hw.raw(strconv.Itoa(row.StatusCode))
		}
		hw.raw(`</td><td>`)
		hw.text(row.Source)
		hw.raw(`</td><td>`)
		if row.CanRedispatch {
			hw.raw(fmt.Sprintf(`<form method="post" action="%s">`, templ.EscapeString(row.RedispatchURL)))
			hw.raw(`<input type="hidden" name="` + csrfFormField + `" value="`)
			hw.text(csrfToken)
			hw.raw(`"><button type="submit">Redispatch</button></form>`)
		}
		hw.raw(`</td></tr>`)

		return hw.err
	})
}
