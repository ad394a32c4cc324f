package application

import (
	"context"
	"fmt"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/links"
	"github.com/davarch/pipedash/internal/trigger"
	"go.uber.org/zap"
)

// GetRecentRuns returns up to top runs of one pipeline, newest first. top
// defaults to 5 and is capped at 50.
func (s *DashboardService) GetRecentRuns(ctx context.Context, creds domain.Credentials, org, project string, pipelineID int64, top int) (domain.RunsResult, error) {
	if top <= 0 {
		top = defaultRecentRuns
	}
	if top > maxRecentRuns {
		top = maxRecentRuns
	}

	p, err := s.platforms.Platform(creds, org)
	if err != nil {
		return domain.RunsResult{Runs: []domain.RunInfo{}, ErrorMessage: err.Error()}, err
	}

	builds, err := p.Builds(ctx, project, pipelineID, top)
	if err != nil {
		err = fmt.Errorf("runs of pipeline %d: %w", pipelineID, err)
		s.log.Warn("recent runs", zap.String("project", project), zap.Error(err))
		return domain.RunsResult{Runs: []domain.RunInfo{}, ErrorMessage: err.Error()}, err
	}

	deriver := links.New(p.ProjectURL(project))
	runs := make([]domain.RunInfo, 0, len(builds))
	for _, b := range builds {
		url := b.WebURL
		if url == "" {
			url = deriver.BuildResults(b.ID)
		}
		runs = append(runs, domain.RunInfo{
			ID:            b.ID,
			Number:        b.Number,
			Status:        b.Status,
			Result:        b.Result,
			QueueTime:     b.QueueTime,
			StartTime:     b.StartTime,
			FinishTime:    b.FinishTime,
			Duration:      duration(b.StartTime, b.FinishTime),
			SourceBranch:  domain.ShortBranch(b.SourceBranch),
			SourceVersion: b.SourceVersion,
			ResourceURL:   url,
			Trigger:       trigger.ForBuild(b),
		})
	}

	return domain.RunsResult{Success: true, Runs: runs}, nil
}

// GetConfigText returns the raw YAML of a pipeline at its repository's default branch.
func (s *DashboardService) GetConfigText(ctx context.Context, creds domain.Credentials, org, project string, pipelineID int64) (domain.ConfigTextResult, error) {
	fail := func(err error) (domain.ConfigTextResult, error) {
		s.log.Warn("config text", zap.String("project", project), zap.Int64("pipeline_id", pipelineID), zap.Error(err))
		return domain.ConfigTextResult{ErrorMessage: err.Error()}, err
	}

	p, err := s.platforms.Platform(creds, org)
	if err != nil {
		return fail(err)
	}

	def, err := p.Definition(ctx, project, pipelineID)
	if err != nil {
		return fail(fmt.Errorf("pipeline %d: %w", pipelineID, err))
	}
	if def.ConfigPath == "" {
		return fail(fmt.Errorf("pipeline %q: %w", def.Name, domain.ErrNotYAMLPipeline))
	}
	if def.Repository == nil || def.Repository.ID == "" {
		return fail(fmt.Errorf("pipeline %q has no repository: %w", def.Name, domain.ErrNotFound))
	}

	branch := links.EditorBranch("", def.Repository.DefaultBranch)
	text, err := p.FileContent(ctx, project, def.Repository.ID, def.ConfigPath, branch)
	if err != nil {
		return fail(fmt.Errorf("read %s@%s: %w", def.ConfigPath, branch, err))
	}

	return domain.ConfigTextResult{Success: true, Text: text, FileName: def.ConfigPath}, nil
}

// ParseConfig runs the configuration parser without any I/O.
func (s *DashboardService) ParseConfig(text string, pipelineID int64, name, path string) domain.ParsedPipelineSettings {
	return s.parser.Parse(text, domain.DefinitionRef{ID: pipelineID, Name: name, Path: path})
}
