package todo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/worldchanger/management-systems/internal/model"
)

var ErrSourceNotFound = errors.New("todo: source document not found")

var (
	sectionPattern = regexp.MustCompile(`^##\s+(.+)$`)
	taskPattern    = regexp.MustCompile(`^\s*-\s+\[([ x])\]\s+(.+)$`)
)

type Parser struct {
	epics []EpicExtractor
}

type Option func(*Parser)

// WithEpicExtractors replaces the epic fallback chain. Passing no extractors
// disables epic inference entirely.
func WithEpicExtractors(extractors ...EpicExtractor) Option {
	return func(p *Parser) {
		p.epics = extractors
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{epics: DefaultEpicExtractors()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs the default parser over a whole document.
func Parse(text string) []Record {
	return NewParser().Parse(text)
}

// ParseFile reads and parses a TODO.md file.
func ParseFile(path string) ([]Record, error) {
	return NewParser().ParseFile(path)
}

func (p *Parser) ParseFile(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(string(raw)), nil
}

type scanState struct {
	section  model.Section
	position int
	records  []Record
}

func (p *Parser) Parse(text string) []Record {
	acc := scanState{section: model.SectionBacklog, records: make([]Record, 0)}
	for i, line := range strings.Split(text, "\n") {
		acc = p.foldLine(acc, i+1, strings.TrimSuffix(line, "\r"))
	}
	return acc.records
}

func (p *Parser) foldLine(acc scanState, lineNo int, line string) scanState {
	if m := sectionPattern.FindStringSubmatch(line); m != nil {
		if section, ok := normalizeSection(m[1]); ok {
			acc.section = section
		}
		acc.position = 0
		return acc
	}

	m := taskPattern.FindStringSubmatch(line)
	if m == nil {
		return acc
	}
	rec := p.parseTask(strings.TrimSpace(m[2]), m[1] == "x")
	rec.Line = lineNo
	rec.Section = acc.section
	rec.Position = acc.position
	acc.records = append(acc.records, rec)
	acc.position++
	return acc
}

// normalizeSection maps free heading text onto a board section. Order
// matters: "Not Yet Started" is backlog even though it is not "To Do".
func normalizeSection(heading string) (model.Section, bool) {
	heading = strings.TrimSpace(heading)
	switch {
	case strings.Contains(heading, "Backlog"), strings.Contains(heading, "Not Yet"):
		return model.SectionBacklog, true
	case strings.Contains(heading, "To Do"):
		return model.SectionToDo, true
	case strings.Contains(heading, "In Progress"):
		return model.SectionInProgress, true
	case strings.Contains(heading, "Completed"):
		return model.SectionCompleted, true
	default:
		return "", false
	}
}

func (p *Parser) parseTask(text string, completed bool) Record {
	d := draft{raw: text, content: text, priority: model.PriorityMedium}
	for _, step := range extractionSteps {
		step(&d)
	}

	rec := Record{
		Content:         strings.TrimSpace(d.content),
		Status:          model.StatusPending,
		Priority:        d.priority,
		Area:            model.DefaultArea,
		OccurrenceCount: model.DefaultOccurrenceCount,
		OriginalID:      d.originalID,
	}
	if rec.Content == "" {
		rec.Content = d.raw
	}
	if completed {
		rec.Status = model.StatusCompleted
	}
	if d.meta.OccurrenceCount != nil {
		rec.OccurrenceCount = *d.meta.OccurrenceCount
	}
	rec.CreatedAt = d.meta.CreatedAt
	if completed {
		rec.CompletedAt = d.meta.CompletedAt
	}
	for _, ex := range p.epics {
		if epic, ok := ex.Epic(d.content, d.meta); ok {
			rec.Epic = &epic
			break
		}
	}
	return rec
}
