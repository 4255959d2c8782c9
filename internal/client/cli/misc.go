package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/client/theme"
	dto "github.com/prometheus/client_model/go"
)

// Theme toggles the display mode, or sets it when mode is given.
func (a *App) Theme(ctx context.Context, mode string) error {
	if mode == "" {
		a.println("Theme:", a.theme.Toggle(ctx))
		return nil
	}

	m, ok := theme.ParseMode(mode)
	if !ok {
		a.println("Usage: theme [light|dark]")
		return fmt.Errorf("unknown theme %q", mode)
	}
	a.theme.Set(ctx, m)
	a.println("Theme:", a.theme.Mode())
	return nil
}

// Stats prints the request counters collected by the API client.
func (a *App) Stats(ctx context.Context) error {
	if a.metrics == nil {
		a.println("No statistics collected.")
		return nil
	}

	families, err := a.metrics.Gather()
	if err != nil {
		a.log.Error(ctx, "gather metrics", "error", err)
		return err
	}

	var (
		lines    []string
		total    uint64
		duration float64
	)
	for _, mf := range families {
		switch mf.GetName() {
		case "blog_client_requests_total":
			for _, m := range mf.GetMetric() {
				labels := labelsOf(m)
				lines = append(lines, fmt.Sprintf("  %-6s %-9s %d", labels["method"], labels["code"], uint64(m.GetCounter().GetValue())))
			}
		case "blog_client_request_duration_seconds":
			for _, m := range mf.GetMetric() {
				total += m.GetHistogram().GetSampleCount()
				duration += m.GetHistogram().GetSampleSum()
			}
		}
	}

	if total == 0 {
		a.println("No requests yet.")
		return nil
	}

	sort.Strings(lines)
	a.printf("%d requests, %s total\n", total, time.Duration(duration*float64(time.Second)).Round(time.Millisecond))
	for _, l := range lines {
		a.println(l)
	}
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// Reset forgets everything saved on this machine, logs out and empties the
// caches. The display mode stays as it is until the next start.
func (a *App) Reset(ctx context.Context) error {
	keys, err := a.repo.Keys(ctx)
	if err != nil {
		a.log.Error(ctx, "list saved state", "error", err)
		a.println("Could not read saved state.")
		return err
	}
	if err := a.repo.Clear(ctx); err != nil {
		a.log.Error(ctx, "clear saved state", "error", err)
		a.println("Could not clear saved state.")
		return err
	}

	a.session.Logout(ctx)
	a.comments.ClearAll()
	a.posts.Clear()

	if len(keys) == 0 {
		a.println("No saved state.")
		return nil
	}
	a.println("Cleared saved state:", strings.Join(keys, ", "))
	return nil
}
