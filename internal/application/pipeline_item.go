package application

import (
	"context"
	"errors"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/links"
	"github.com/davarch/pipedash/internal/trigger"
	"github.com/davarch/pipedash/internal/variablegroups"
	"go.uber.org/zap"
)

// buildItem assembles one dashboard row. A returned error means the pipeline
// is dropped; recoverable sub-fetch failures come back as warnings instead.
func (s *DashboardService) buildItem(
	ctx context.Context,
	log *zap.Logger,
	p domain.Platform,
	project string,
	ref domain.DefinitionRef,
	catalog *variablegroups.Catalog,
	deriver links.Deriver,
) (domain.PipelineListItem, []domain.Warning, error) {
	log = log.With(zap.Int64("pipeline_id", ref.ID), zap.String("pipeline", ref.Name))

	def, err := p.Definition(ctx, project, ref.ID)
	if err != nil {
		return domain.PipelineListItem{}, nil, domain.StageErr(domain.StageDefinition, err)
	}

	item := domain.PipelineListItem{
		ID:             def.ID,
		Name:           def.Name,
		Path:           def.Path,
		QueueStatus:    def.QueueStatus,
		ConfigPath:     def.ConfigPath,
		VariableGroups: []domain.VariableGroupRef{},
	}
	if item.Name == "" {
		item.Name = ref.Name
	}
	if item.Path == "" {
		item.Path = ref.Path
	}

	var repoID string
	if def.Repository != nil {
		repoID = def.Repository.ID
		item.RepositoryName = def.Repository.Name
		item.DefaultBranch = domain.ShortBranch(def.Repository.DefaultBranch)
	}

	var warns []domain.Warning
	warn := func(stage domain.Stage, err error) {
		log.Debug("partial pipeline data", zap.String("stage", string(stage)), zap.Error(err))
		warns = append(warns, domain.Warning{PipelineID: ref.ID, PipelineName: item.Name, Stage: stage, Message: err.Error()})
	}

	builds, err := p.Builds(ctx, project, def.ID, 1)
	switch {
	case err == nil:
		if len(builds) > 0 {
			applyBuild(&item, builds[0])
		}
	case errors.Is(err, domain.ErrNotFound):
		warn(domain.StageLatestBuild, err)
	default:
		return domain.PipelineListItem{}, warns, domain.StageErr(domain.StageLatestBuild, err)
	}

	item.URLs = domain.PipelineURLs{
		Runs:         deriver.PipelineRuns(def.ID),
		BuildResults: deriver.BuildResults(item.BuildID),
		BuildLogs:    deriver.BuildLogs(item.BuildID),
		Repository:   deriver.Repository(item.RepositoryName),
		Commit:       deriver.Commit(item.RepositoryName, item.CommitHash),
		Branch:       deriver.RepositoryBranch(item.RepositoryName, item.SourceBranch),
		ConfigEditor: deriver.ConfigEditor(def.ID, item.SourceBranch, item.DefaultBranch),
	}

	if def.ConfigPath != "" && repoID != "" {
		branch := links.EditorBranch("", item.DefaultBranch)
		text, err := p.FileContent(ctx, project, repoID, def.ConfigPath, branch)
		if err != nil {
			if ctx.Err() != nil {
				return domain.PipelineListItem{}, warns, domain.StageErr(domain.StageConfigText, err)
			}
			warn(domain.StageConfigText, err)
		} else {
			parsed := s.parser.Parse(text, domain.DefinitionRef{ID: def.ID, Name: item.Name, Path: item.Path})
			item.SourceRepoProject = parsed.SourceRepoProject
			item.SourceRepoName = parsed.SourceRepoName
			item.SourceRepoBranch = parsed.SourceRepoBranch
			if parsed.SourceRepoName != "" {
				item.URLs.SourceRepo = deriver.SourceRepository(parsed.SourceRepoProject, parsed.SourceRepoName, parsed.SourceRepoBranch)
			}
			item.VariableGroups = catalog.ResolveBindings(parsed.Environments)
		}
	}

	if len(item.VariableGroups) == 0 {
		item.VariableGroups = catalog.ResolveDeclared(def.VariableGroups)
	}

	return item, warns, nil
}

func applyBuild(item *domain.PipelineListItem, b domain.Build) {
	item.BuildID = b.ID
	item.BuildNumber = b.Number
	item.LatestStatus = b.Status
	item.LatestResult = b.Result
	item.StartTime = b.StartTime
	item.FinishTime = b.FinishTime
	item.SourceBranch = domain.ShortBranch(b.SourceBranch)
	item.Duration = duration(b.StartTime, b.FinishTime)
	item.CommitHash = b.SourceVersion
	item.CommitHashShort = links.ShortCommit(b.SourceVersion)

	t := trigger.ForBuild(b)
	item.Trigger = &t
}

// duration is nil unless both ends are known.
func duration(start, finish *time.Time) *time.Duration {
	if start == nil || finish == nil {
		return nil
	}
	d := finish.Sub(*start)
	return &d
}
