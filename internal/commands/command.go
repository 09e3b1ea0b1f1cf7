package commands

import (
	"fmt"
	"strings"

	"github.com/worldchanger/management-systems/internal/model"
)

type Type string

const (
	TypeAdd      Type = "add"
	TypeMove     Type = "move"
	TypePriority Type = "priority"
	TypeEpic     Type = "epic"
	TypeTag      Type = "tag"
	TypeUntag    Type = "untag"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type AddArgs struct {
	Content  string
	Priority model.Priority
}

type MoveArgs struct {
	Section model.Section
}

type PriorityArgs struct {
	Priority model.Priority
}

// EpicArgs with an empty Name clears the epic.
type EpicArgs struct {
	Name string
}

type TagArgs struct {
	Name string
}

type Command struct {
	Type     Type
	Raw      string
	Add      *AddArgs
	Move     *MoveArgs
	Priority *PriorityArgs
	Epic     *EpicArgs
	Tag      *TagArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeMove:
		return parseMove(input, args)
	case TypePriority:
		return parsePriority(input, args)
	case TypeEpic:
		return Command{Type: TypeEpic, Raw: input, Epic: &EpicArgs{Name: strings.Join(args, " ")}}, nil
	case TypeTag, TypeUntag:
		return parseTag(input, Type(head), args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseAdd accepts a trailing "!high", "!medium" or "!low" to set priority.
func parseAdd(raw string, args []string) (Command, error) {
	add := &AddArgs{Priority: model.PriorityMedium}
	if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "!") {
		p := model.Priority(strings.ToLower(strings.TrimPrefix(args[n-1], "!")))
		if !p.IsValid() {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown priority %q", p)}
		}
		add.Priority = p
		args = args[:n-1]
	}
	add.Content = strings.TrimSpace(strings.Join(args, " "))
	if add.Content == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires task text"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: add}, nil
}

func parseMove(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "move requires a section"}
	}
	section, err := model.ParseSection(strings.Join(args, " "))
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: err.Error()}
	}
	return Command{Type: TypeMove, Raw: raw, Move: &MoveArgs{Section: section}}, nil
}

func parsePriority(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "priority requires one of high, medium, low"}
	}
	p := model.Priority(strings.ToLower(args[0]))
	if !p.IsValid() {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown priority %q", args[0])}
	}
	return Command{Type: TypePriority, Raw: raw, Priority: &PriorityArgs{Priority: p}}, nil
}

func parseTag(raw string, typ Type, args []string) (Command, error) {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a tag name", typ)}
	}
	return Command{Type: typ, Raw: raw, Tag: &TagArgs{Name: name}}, nil
}
