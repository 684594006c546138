package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/taskforge/taskforge/internal/model"
)

// TablePrinter prints orchestrator information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintProjectList prints projects in a table format.
func (t *TablePrinter) PrintProjectList(projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tNAME\tREPO\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.RepoURL, TimeAgo(p.CreatedAt))
	}

	return nil
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tSTATE\tBRANCH\tCREATED")
	for _, tk := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", tk.ID, tk.Title, tk.Type, tk.ExecutionState, tk.BranchName, TimeAgo(tk.CreatedAt))
	}

	return nil
}

// PrintTaskStatus prints a task with its comment history.
func (t *TablePrinter) PrintTaskStatus(task model.Task, comments []model.Comment) error {
	fmt.Fprintf(t.writer, "ID:          %s\n", task.ID)
	fmt.Fprintf(t.writer, "Title:       %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(t.writer, "Description: %s\n", task.Description)
	}
	fmt.Fprintf(t.writer, "Type:        %s\n", task.Type)
	fmt.Fprintf(t.writer, "State:       %s\n", task.ExecutionState)
	if task.BranchName != "" {
		fmt.Fprintf(t.writer, "Branch:      %s\n", task.BranchName)
	}
	fmt.Fprintf(t.writer, "Created:     %s\n", FormatTimestamp(task.CreatedAt))

	if len(comments) > 0 {
		fmt.Fprintf(t.writer, "\nComments:\n")
		for _, c := range comments {
			author := c.AuthorUserID
			if c.IsAgent() {
				author = fmt.Sprintf("agent/%s", c.AgentName)
			}
			fmt.Fprintf(t.writer, "  [%s] %s: %s\n", FormatTimestamp(c.CreatedAt), author, c.Content)
		}
	}

	return nil
}

// PrintSessionList prints execution sessions in a table format.
func (t *TablePrinter) PrintSessionList(sessions []model.ExecutionSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tMODE\tBRANCH\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.TaskID, s.Status, s.Mode, s.BranchName, TimeAgo(s.CreatedAt))
	}

	return nil
}

// PrintManifest prints a manifest.
func (t *TablePrinter) PrintManifest(m model.Manifest) error {
	fmt.Fprintf(t.writer, "ID:              %s\n", m.ID)
	fmt.Fprintf(t.writer, "Project:         %s\n", m.ProjectID)
	fmt.Fprintf(t.writer, "Status:          %s\n", m.Status)
	fmt.Fprintf(t.writer, "Completed tasks: %d\n", m.CompletedTasks)
	fmt.Fprintf(t.writer, "Created:         %s\n", FormatTimestamp(m.CreatedAt))

	return nil
}

// PrintMessage prints a plain message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}
