package todo

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/worldchanger/management-systems/internal/model"
)

var (
	metadataPattern      = regexp.MustCompile(`\{[^}]+\}`)
	priorityPattern      = regexp.MustCompile(`\((high|medium|low)\)`)
	priorityStripPattern = regexp.MustCompile(`\s*\((high|medium|low)\)`)
	idPattern            = regexp.MustCompile(`\(id:(\d+)\)`)
	idStripPattern       = regexp.MustCompile(`\s*\(id:\d+\)`)
)

// maxEpicPrefix is the exclusive rune limit for treating "Label: rest" as an
// epic label.
const maxEpicPrefix = 50

// metadataFields holds one schema per known key. Each field is accepted or
// dropped on its own, so a bad occurrence_count does not cost the epic.
var metadataFields = map[string]*jsonschema.Schema{
	"epic":             jsonschema.MustCompileString("epic.json", `{"type": "string", "maxLength": 100}`),
	"occurrence_count": jsonschema.MustCompileString("occurrence_count.json", `{"type": "integer", "minimum": 1, "maximum": 2147483647}`),
	"created_at":       jsonschema.MustCompileString("created_at.json", `{"type": "string"}`),
	"completed_at":     jsonschema.MustCompileString("completed_at.json", `{"type": "string"}`),
}

// Metadata is the inline JSON object a task line may carry.
type Metadata struct {
	Epic            string `json:"epic,omitempty"`
	OccurrenceCount *int   `json:"occurrence_count,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

type draft struct {
	raw        string
	content    string
	priority   model.Priority
	originalID *int
	meta       Metadata
}

// extractionSteps run in order. Metadata goes first because its JSON may
// contain parenthesised text that would otherwise look like a marker.
var extractionSteps = []func(*draft){
	extractMetadata,
	extractPriority,
	extractOriginalID,
}

func extractMetadata(d *draft) {
	loc := metadataPattern.FindStringIndex(d.content)
	if loc == nil {
		return
	}
	fragment := d.content[loc[0]:loc[1]]

	fields, err := decodeMetadata(fragment)
	if err != nil {
		return
	}
	// Well-formed JSON is always removed from the text.
	d.content = joinAround(d.content[:loc[0]], d.content[loc[1]:])
	d.meta = metadataFrom(fields)
}

func decodeMetadata(fragment string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(fragment))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func metadataFrom(fields map[string]any) Metadata {
	var meta Metadata
	for name, schema := range metadataFields {
		v, ok := fields[name]
		if !ok || schema.Validate(v) != nil {
			continue
		}
		switch name {
		case "epic":
			meta.Epic, _ = v.(string)
		case "created_at":
			meta.CreatedAt, _ = v.(string)
		case "completed_at":
			meta.CompletedAt, _ = v.(string)
		case "occurrence_count":
			if n, ok := integral(v); ok {
				meta.OccurrenceCount = &n
			}
		}
	}
	return meta
}

// integral accepts integer-valued numbers in any JSON spelling, 2 or 2.0.
func integral(v any) (int, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func extractPriority(d *draft) {
	m := priorityPattern.FindStringSubmatch(d.content)
	if m == nil {
		return
	}
	d.priority = model.Priority(m[1])
	d.content = priorityStripPattern.ReplaceAllString(d.content, "")
}

func extractOriginalID(d *draft) {
	m := idPattern.FindStringSubmatch(d.content)
	if m == nil {
		return
	}
	if id, err := strconv.Atoi(m[1]); err == nil {
		d.originalID = &id
	}
	d.content = idStripPattern.ReplaceAllString(d.content, "")
}

func joinAround(before, after string) string {
	before = strings.TrimSpace(before)
	after = strings.TrimSpace(after)
	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + " " + after
	}
}

// EpicExtractor derives an epic label for a task. Extractors are tried in
// order and the first hit wins.
type EpicExtractor interface {
	Epic(content string, meta Metadata) (string, bool)
}

type EpicExtractorFunc func(content string, meta Metadata) (string, bool)

func (f EpicExtractorFunc) Epic(content string, meta Metadata) (string, bool) {
	return f(content, meta)
}

// JSONEpic takes the epic from inline metadata.
var JSONEpic = EpicExtractorFunc(func(_ string, meta Metadata) (string, bool) {
	if meta.Epic == "" {
		return "", false
	}
	return meta.Epic, true
})

// ColonPrefixEpic treats a short "Label: rest of text" prefix as the epic.
var ColonPrefixEpic = EpicExtractorFunc(func(content string, _ Metadata) (string, bool) {
	label, _, found := strings.Cut(content, ":")
	if !found || utf8.RuneCountInString(label) >= maxEpicPrefix {
		return "", false
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	return label, true
})

func DefaultEpicExtractors() []EpicExtractor {
	return []EpicExtractor{JSONEpic, ColonPrefixEpic}
}
