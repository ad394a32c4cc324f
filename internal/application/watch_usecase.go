package application

import (
	"context"
	"strings"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"go.uber.org/zap"
)

type DashboardBuilder interface {
	GetDashboard(ctx context.Context, creds domain.Credentials, org, project, connectionID string) (domain.DashboardResult, error)
}

type lastRun struct {
	buildID int64
	result  string
}

// WatchUseCase refreshes a project's dashboard, stores the snapshot and
// notifies about pipelines whose newest finished run failed or recovered.
type WatchUseCase struct {
	log   *zap.Logger
	dash  DashboardBuilder
	creds domain.Credentials
	note  domain.Notifier
	cache domain.DashboardCache

	last map[domain.Target]map[int64]lastRun
}

func NewWatchUseCase(l *zap.Logger, dash DashboardBuilder, creds domain.Credentials, note domain.Notifier, cache domain.DashboardCache) *WatchUseCase {
	if l == nil {
		l = zap.NewNop()
	}
	return &WatchUseCase{
		log: l, dash: dash, creds: creds, note: note, cache: cache,
		last: make(map[domain.Target]map[int64]lastRun),
	}
}

func (uc *WatchUseCase) PollOnce(ctx context.Context, t domain.Target) error {
	res, err := uc.dash.GetDashboard(ctx, uc.creds, t.Organization, t.Project, "")
	if err != nil {
		return err
	}

	prev, seen := uc.last[t]
	next := make(map[int64]lastRun, len(res.Pipelines))
	changed := !seen

	for _, p := range res.Pipelines {
		cur := lastRun{buildID: p.BuildID, result: strings.ToLower(p.LatestResult)}
		next[p.ID] = cur

		old, ok := prev[p.ID]
		if !ok || old != cur {
			changed = true
		}
		if !seen || !ok || old.buildID == cur.buildID || cur.result == "" {
			continue
		}

		if title, notify := titleFor(old.result, cur.result); notify {
			body := p.Name + " #" + p.BuildNumber + " (" + p.SourceBranch + ")"
			if err := uc.note.Notify(ctx, title, body, p.URLs.BuildResults); err != nil {
				uc.log.Debug("notify failed", zap.String("target", t.String()), zap.Int64("pipeline_id", p.ID), zap.Error(err))
			}
		}
	}

	if changed {
		err := uc.cache.Write(ctx, domain.Snapshot{
			Target: t, Dashboard: res, Retrieved: time.Now().Unix(),
		})
		if err != nil {
			uc.log.Warn("cache write failed", zap.String("target", t.String()), zap.Error(err))
		}
	}
	uc.last[t] = next

	return nil
}

func titleFor(prev, cur string) (string, bool) {
	switch {
	case cur == "failed":
		return "❌ CI: failed", true
	case cur == "succeeded" && prev == "failed":
		return "✅ CI: fixed", true
	case cur == "partiallysucceeded" && prev != cur:
		return "⚠️ CI: partially succeeded", true
	default:
		return "ℹ️ CI: " + cur, false
	}
}
