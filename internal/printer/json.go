package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/taskforge/taskforge/internal/model"
)

// JSONPrinter prints orchestrator information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type projectItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repo_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PrintProjectList prints projects in JSON format.
func (j *JSONPrinter) PrintProjectList(projects []model.Project) error {
	items := make([]projectItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, projectItem{
			ID:        p.ID,
			Name:      p.Name,
			RepoURL:   p.RepoURL,
			CreatedAt: p.CreatedAt,
		})
	}

	return j.print(items)
}

type taskItem struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Title          string    `json:"title"`
	Type           string    `json:"type"`
	ExecutionState string    `json:"execution_state"`
	BranchName     string    `json:"branch_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PrintTaskList prints tasks in JSON format.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, newTaskItem(t))
	}

	return j.print(items)
}

type commentItem struct {
	Author    string    `json:"author"`
	Agent     bool      `json:"agent"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PrintTaskStatus prints a task with its comment history in JSON format.
func (j *JSONPrinter) PrintTaskStatus(task model.Task, comments []model.Comment) error {
	out := struct {
		Task     taskItem      `json:"task"`
		Comments []commentItem `json:"comments"`
	}{
		Task:     newTaskItem(task),
		Comments: make([]commentItem, 0, len(comments)),
	}

	for _, c := range comments {
		author := c.AuthorUserID
		if c.IsAgent() {
			author = c.AgentName
		}
		out.Comments = append(out.Comments, commentItem{
			Author:    author,
			Agent:     c.IsAgent(),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}

	return j.print(out)
}

type sessionItem struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Mode        string     `json:"mode"`
	BranchName  string     `json:"branch_name,omitempty"`
	SandboxURL  string     `json:"sandbox_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PrintSessionList prints execution sessions in JSON format.
func (j *JSONPrinter) PrintSessionList(sessions []model.ExecutionSession) error {
	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem{
			ID:          s.ID,
			TaskID:      s.TaskID,
			Status:      string(s.Status),
			Mode:        string(s.Mode),
			BranchName:  s.BranchName,
			SandboxURL:  s.SandboxURL,
			CreatedAt:   s.CreatedAt,
			CompletedAt: s.CompletedAt,
		})
	}

	return j.print(items)
}

type manifestItem struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Status         string    `json:"status"`
	CompletedTasks int       `json:"completed_tasks"`
	CreatedAt      time.Time `json:"created_at"`
}

// PrintManifest prints a manifest in JSON format.
func (j *JSONPrinter) PrintManifest(m model.Manifest) error {
	return j.print(manifestItem{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		Status:         string(m.Status),
		CompletedTasks: m.CompletedTasks,
		CreatedAt:      m.CreatedAt,
	})
}

// PrintMessage prints a plain message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.print(map[string]string{"message": msg})
}

func (j *JSONPrinter) print(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTaskItem(t model.Task) taskItem {
	return taskItem{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Title:          t.Title,
		Type:           string(t.Type),
		ExecutionState: string(t.ExecutionState),
		BranchName:     t.BranchName,
		CreatedAt:      t.CreatedAt,
	}
}
