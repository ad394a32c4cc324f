package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/links"
	"github.com/davarch/pipedash/internal/pipelineconfig"
	"github.com/davarch/pipedash/internal/variablegroups"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultRecentRuns  = 5
	maxRecentRuns      = 50
)

type Options struct {
	Concurrency     int
	PipelineTimeout time.Duration
	BuildRepo       string
}

// DashboardService assembles read-only pipeline views from the upstream platform.
type DashboardService struct {
	log       *zap.Logger
	platforms domain.PlatformFactory
	progress  domain.ProgressNotifier
	parser    *pipelineconfig.Parser
	opts      Options
}

// NewDashboardService accepts a nil progress notifier.
func NewDashboardService(l *zap.Logger, pf domain.PlatformFactory, progress domain.ProgressNotifier, opts Options) *DashboardService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &DashboardService{
		log:       l,
		platforms: pf,
		progress:  progress,
		parser:    pipelineconfig.New(opts.BuildRepo),
		opts:      opts,
	}
}

type slot struct {
	item     *domain.PipelineListItem
	warnings []domain.Warning
}

// GetDashboard builds one row per pipeline definition. Only a failure to list
// definitions (or cancellation) fails the call; a pipeline that cannot be
// assembled is left out and reported in Warnings.
func (s *DashboardService) GetDashboard(ctx context.Context, creds domain.Credentials, org, project, connectionID string) (domain.DashboardResult, error) {
	log := s.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("organization", org),
		zap.String("project", project),
	)
	started := time.Now()

	p, err := s.platforms.Platform(creds, org)
	if err != nil {
		log.Error("platform client", zap.Error(err))
		return dashboardFailure(err), err
	}

	var res domain.DashboardResult

	deriver := links.New(s.projectURL(ctx, log, p, project))

	groups, err := p.VariableGroups(ctx, project)
	if err != nil {
		log.Debug("variable groups unavailable", zap.Error(err))
		res.Warnings = append(res.Warnings, domain.Warning{Stage: domain.StageVariableGroups, Message: err.Error()})
		groups = nil
	}
	catalog := variablegroups.NewCatalog(groups, deriver)

	defs, err := p.Definitions(ctx, project)
	if err != nil {
		err = fmt.Errorf("list pipelines of %s/%s: %w", org, project, domain.StageErr(domain.StageDefinitions, err))
		log.Error("dashboard failed", zap.Error(err))
		return dashboardFailure(err), err
	}

	slots := make([]slot, len(defs))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, ref := range defs {
		i, ref := i, ref
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			pctx, cancel := s.pipelineContext(ctx)
			defer cancel()

			item, warns, err := s.buildItem(pctx, log, p, project, ref, catalog, deriver)
			if err != nil {
				log.Warn("pipeline skipped",
					zap.Int64("pipeline_id", ref.ID),
					zap.String("pipeline", ref.Name),
					zap.Error(err),
				)
				slots[i].warnings = append(warns, omitted(ref, err))
				return nil
			}

			slots[i] = slot{item: &item, warnings: warns}
			n := done.Add(1)
			s.push(ctx, log, connectionID, fmt.Sprintf("Loaded pipeline %s (%d/%d)", ref.Name, n, len(defs)))
			return nil
		})
	}
	_ = g.Wait()

	res.Pipelines = make([]domain.PipelineListItem, 0, len(defs))
	for _, sl := range slots {
		res.Warnings = append(res.Warnings, sl.warnings...)
		if sl.item != nil {
			res.Pipelines = append(res.Pipelines, *sl.item)
		}
	}
	sortItems(res.Pipelines)
	summarize(&res)
	res.AvailableVariableGroups = catalog.Groups()

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("dashboard %s/%s: %w", org, project, err)
		log.Error("dashboard cancelled", zap.Int("completed", len(res.Pipelines)), zap.Error(err))
		res.ErrorMessage = err.Error()
		return res, err
	}

	res.Success = true
	log.Info("dashboard built",
		zap.Int("pipelines", res.TotalCount),
		zap.Int("definitions", len(defs)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("took", time.Since(started)),
	)
	return res, nil
}

func (s *DashboardService) projectURL(ctx context.Context, log *zap.Logger, p domain.Platform, project string) string {
	info, err := p.Project(ctx, project)
	if err != nil || info.WebURL == "" {
		log.Debug("project web url unavailable, using canonical url", zap.Error(err))
		return p.ProjectURL(project)
	}
	return info.WebURL
}

func (s *DashboardService) pipelineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.PipelineTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.PipelineTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *DashboardService) push(ctx context.Context, log *zap.Logger, connectionID, msg string) {
	if connectionID == "" || s.progress == nil {
		return
	}
	if err := s.progress.Push(ctx, connectionID, msg); err != nil {
		log.Debug("progress push failed", zap.String("connection_id", connectionID), zap.Error(err))
	}
}

func omitted(ref domain.DefinitionRef, err error) domain.Warning {
	stage := domain.StageOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stage = domain.StageCancelled
	}
	return domain.Warning{
		PipelineID:   ref.ID,
		PipelineName: ref.Name,
		Stage:        stage,
		Message:      err.Error(),
		Omitted:      true,
	}
}

func dashboardFailure(err error) domain.DashboardResult {
	return domain.DashboardResult{
		Pipelines:               []domain.PipelineListItem{},
		AvailableVariableGroups: []domain.VariableGroup{},
		ErrorMessage:            err.Error(),
	}
}

// sortItems orders by folder path, then name, then id.
func sortItems(items []domain.PipelineListItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if pa, pb := strings.ToLower(a.Path), strings.ToLower(b.Path); pa != pb {
			return pa < pb
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}

func summarize(res *domain.DashboardResult) {
	res.TotalCount = len(res.Pipelines)
	res.EnabledCount, res.FailedCount = 0, 0
	for _, p := range res.Pipelines {
		if p.IsEnabled() {
			res.EnabledCount++
		}
		if strings.EqualFold(p.LatestResult, "failed") {
			res.FailedCount++
		}
	}
}
