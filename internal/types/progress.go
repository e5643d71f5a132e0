package types

import "context"

// Progress is an intermediate report from a running job body.
type Progress struct {
	Percent        float64 `json:"percent"`
	ItemsFound     int     `json:"itemsFound"`
	ItemsProcessed int     `json:"itemsProcessed"`
	PagesProcessed int     `json:"pagesProcessed"`
	Message        string  `json:"message,omitempty"`
}

// ProgressReporter receives progress reports for one task attempt.
type ProgressReporter func(Progress)

type progressKey struct{}

// WithProgressReporter attaches a reporter to ctx for job bodies to use.
func WithProgressReporter(ctx context.Context, r ProgressReporter) context.Context {
	return context.WithValue(ctx, progressKey{}, r)
}

// ReportProgress forwards p to the reporter attached to ctx, if any.
// Percent is clamped to [0, 100].
func ReportProgress(ctx context.Context, p Progress) {
	r, ok := ctx.Value(progressKey{}).(ProgressReporter)
	if !ok || r == nil {
		return
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	r(p)
}
