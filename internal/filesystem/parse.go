package filesystem

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/model"
)

const frontmatterDelimiter = "---"

// stringList accepts either a YAML scalar or a sequence, so hand-edited
// files may write `assignee: alice` or `assignee: [alice, bob]`.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.ShortTag() == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", value.Line)
	}
}

type taskFrontmatter struct {
	ID           string     `yaml:"id"`
	Title        string     `yaml:"title"`
	Status       string     `yaml:"status"`
	Assignee     stringList `yaml:"assignee,omitempty"`
	Labels       stringList `yaml:"labels,omitempty"`
	Dependencies stringList `yaml:"dependencies,omitempty"`
	Priority     string     `yaml:"priority,omitempty"`
	Milestone    string     `yaml:"milestone,omitempty"`
	ParentTaskID string     `yaml:"parent_task_id,omitempty"`
	Ordinal      *int       `yaml:"ordinal,omitempty"`
	CreatedDate  string     `yaml:"created_date,omitempty"`
	UpdatedDate  string     `yaml:"updated_date,omitempty"`
}

type documentFrontmatter struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Type        string     `yaml:"type,omitempty"`
	Tags        stringList `yaml:"tags,omitempty"`
	CreatedDate string     `yaml:"created_date,omitempty"`
	UpdatedDate string     `yaml:"updated_date,omitempty"`
}

type decisionFrontmatter struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	Date   string `yaml:"date,omitempty"`
}

type milestoneFrontmatter struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// splitFrontmatter separates the YAML header from the markdown body. A file
// without a complete header is treated as a parse failure: it is most
// likely being written right now.
func splitFrontmatter(content []byte) (header []byte, body string, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if len(bytes.TrimSpace(normalized)) == 0 {
		return nil, "", errors.New("empty file")
	}
	if !bytes.HasPrefix(normalized, []byte(frontmatterDelimiter+"\n")) {
		return nil, "", errors.New("missing frontmatter")
	}
	rest := normalized[len(frontmatterDelimiter)+1:]

	end := bytes.Index(rest, []byte("\n"+frontmatterDelimiter))
	switch {
	case bytes.HasPrefix(rest, []byte(frontmatterDelimiter)):
		header, rest = nil, rest[len(frontmatterDelimiter):]
	case end >= 0:
		header, rest = rest[:end], rest[end+1+len(frontmatterDelimiter):]
	default:
		return nil, "", errors.New("unterminated frontmatter")
	}
	// Drop the remainder of the closing delimiter line.
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}
	return header, strings.TrimSpace(string(rest)), nil
}

func decodeFrontmatter(kind, path string, content []byte, out any) (string, error) {
	header, body, err := splitFrontmatter(content)
	if err != nil {
		return "", errors.NewParseError(kind, path, err)
	}
	if err := yaml.Unmarshal(header, out); err != nil {
		return "", errors.NewParseError(kind, path, err)
	}
	return body, nil
}

// ParseTask parses a task file. The id falls back to the one encoded in the
// file name when the header omits it. A header id naming a different task
// than the file name is a parse failure: the file name is what watchers key
// removals on.
func ParseTask(path string, content []byte, prefix string) (*model.Task, error) {
	var fm taskFrontmatter
	body, err := decodeFrontmatter("task", path, content, &fm)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(fm.ID)
	fileID, named := TaskIDFromFilename(filepath.Base(path), prefix)
	switch {
	case id == "" && !named:
		return nil, errors.NewParseError("task", path, errors.New("missing id"))
	case id == "":
		id = fileID
	case named && !model.SameID(id, fileID, prefix):
		return nil, errors.NewParseError("task", path,
			fmt.Errorf("id %q does not match file name id %q", id, fileID))
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, errors.NewParseError("task", path, errors.New("missing title"))
	}

	return &model.Task{
		ID:           strings.ToLower(id),
		Title:        strings.TrimSpace(fm.Title),
		Status:       strings.TrimSpace(fm.Status),
		Assignee:     []string(fm.Assignee),
		Labels:       []string(fm.Labels),
		Dependencies: []string(fm.Dependencies),
		Priority:     model.ParsePriority(fm.Priority),
		Milestone:    fm.Milestone,
		ParentTaskID: fm.ParentTaskID,
		Ordinal:      fm.Ordinal,
		CreatedDate:  fm.CreatedDate,
		UpdatedDate:  fm.UpdatedDate,
		Body:         body,
		FilePath:     path,
	}, nil
}

// ParseDocument parses a document file. relPath is the location relative
// to the docs root.
func ParseDocument(path, relPath string, content []byte) (*model.Document, error) {
	var fm documentFrontmatter
	body, err := decodeFrontmatter("document", path, content, &fm)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(fm.ID)
	if id == "" {
		var ok bool
		if id, ok = DocumentIDFromFilename(filepath.Base(path)); !ok {
			return nil, errors.NewParseError("document", path, errors.New("missing id"))
		}
	}
	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = FirstHeading(body)
	}
	if title == "" {
		return nil, errors.NewParseError("document", path, errors.New("missing title"))
	}

	return &model.Document{
		ID:          id,
		Title:       title,
		Type:        fm.Type,
		Tags:        []string(fm.Tags),
		CreatedDate: fm.CreatedDate,
		UpdatedDate: fm.UpdatedDate,
		Body:        body,
		Path:        filepath.ToSlash(relPath),
	}, nil
}

// ParseDecision parses a decision file.
func ParseDecision(path string, content []byte) (*model.Decision, error) {
	var fm decisionFrontmatter
	body, err := decodeFrontmatter("decision", path, content, &fm)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(fm.ID)
	if id == "" {
		var ok bool
		if id, ok = DecisionIDFromFilename(filepath.Base(path)); !ok {
			return nil, errors.NewParseError("decision", path, errors.New("missing id"))
		}
	}
	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = FirstHeading(body)
	}
	if title == "" {
		return nil, errors.NewParseError("decision", path, errors.New("missing title"))
	}

	return &model.Decision{
		ID:     id,
		Title:  title,
		Status: model.ParseDecisionStatus(fm.Status),
		Date:   fm.Date,
		Body:   body,
	}, nil
}

// ParseMilestone parses a milestone file.
func ParseMilestone(path string, content []byte) (*model.Milestone, error) {
	var fm milestoneFrontmatter
	body, err := decodeFrontmatter("milestone", path, content, &fm)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(fm.ID)
	if id == "" {
		var ok bool
		if id, ok = MilestoneIDFromFilename(filepath.Base(path)); !ok {
			return nil, errors.NewParseError("milestone", path, errors.New("missing id"))
		}
	}
	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = FirstHeading(body)
	}

	return &model.Milestone{
		ID:          id,
		Title:       title,
		Description: fm.Description,
		Body:        body,
	}, nil
}

// -----------------------------------------------------------------------------
// Serialization
// -----------------------------------------------------------------------------

func render(header any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(header); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString(frontmatterDelimiter + "\n")
	if body = strings.TrimSpace(body); body != "" {
		buf.WriteString("\n" + body + "\n")
	}
	return buf.Bytes(), nil
}

// RenderTask serializes a task to its on-disk form.
func RenderTask(t model.Task) ([]byte, error) {
	return render(taskFrontmatter{
		ID:           t.ID,
		Title:        t.Title,
		Status:       t.Status,
		Assignee:     stringList(t.Assignee),
		Labels:       stringList(t.Labels),
		Dependencies: stringList(t.Dependencies),
		Priority:     string(t.Priority),
		Milestone:    t.Milestone,
		ParentTaskID: t.ParentTaskID,
		Ordinal:      t.Ordinal,
		CreatedDate:  t.CreatedDate,
		UpdatedDate:  t.UpdatedDate,
	}, t.Body)
}

// RenderDocument serializes a document to its on-disk form.
func RenderDocument(d model.Document) ([]byte, error) {
	return render(documentFrontmatter{
		ID:          d.ID,
		Title:       d.Title,
		Type:        d.Type,
		Tags:        stringList(d.Tags),
		CreatedDate: d.CreatedDate,
		UpdatedDate: d.UpdatedDate,
	}, d.Body)
}

// RenderDecision serializes a decision to its on-disk form.
func RenderDecision(d model.Decision) ([]byte, error) {
	return render(decisionFrontmatter{
		ID:     d.ID,
		Title:  d.Title,
		Status: string(d.Status),
		Date:   d.Date,
	}, d.Body)
}

// RenderMilestone serializes a milestone to its on-disk form.
func RenderMilestone(m model.Milestone) ([]byte, error) {
	return render(milestoneFrontmatter{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
	}, m.Body)
}
