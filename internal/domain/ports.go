package domain

import "context"

// Platform is the read-only view of the upstream CI/CD service for one organization.
type Platform interface {
	// ProjectURL is the canonical web URL of a project, built without I/O.
	ProjectURL(project string) string
	Project(ctx context.Context, project string) (Project, error)
	Definitions(ctx context.Context, project string) ([]DefinitionRef, error)
	Definition(ctx context.Context, project string, id int64) (Definition, error)
	Builds(ctx context.Context, project string, definitionID int64, top int) ([]Build, error)
	VariableGroups(ctx context.Context, project string) ([]VariableGroup, error)
	FileContent(ctx context.Context, project, repositoryID, path, branch string) (string, error)
}

type PlatformFactory interface {
	Platform(creds Credentials, organization string) (Platform, error)
}

// ProgressNotifier pushes a status line to a connected client. Delivery is best effort.
type ProgressNotifier interface {
	Push(ctx context.Context, connectionID, message string) error
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}

type DashboardCache interface {
	Write(ctx context.Context, s Snapshot) error
}
