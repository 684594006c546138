package printer

import "github.com/taskforge/taskforge/internal/model"

// Printer knows how to print orchestrator information in different formats.
type Printer interface {
	PrintProjectList(projects []model.Project) error
	PrintTaskList(tasks []model.Task) error
	PrintTaskStatus(task model.Task, comments []model.Comment) error
	PrintSessionList(sessions []model.ExecutionSession) error
	PrintManifest(manifest model.Manifest) error
	PrintMessage(msg string) error
}
