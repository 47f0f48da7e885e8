package commands

import (
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	TypeGenerate    Type = "generate"
	TypeHolidays    Type = "holidays"
	TypeNotify      Type = "notify"
	TypeReport      Type = "report"
	TypePermissions Type = "permissions"
	TypeExport      Type = "export"
	TypeImport      Type = "import"
	TypeDaemon      Type = "daemon"
	TypeDashboard   Type = "dashboard"
	TypePreview     Type = "preview"
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

// AllLists selects every holiday list.
const AllLists = "all"

type HolidaysArgs struct {
	ListID string
}

type ReportKind string

const (
	ReportSummary  ReportKind = "summary"
	ReportOverdue  ReportKind = "overdue"
	ReportUpcoming ReportKind = "upcoming"
	ReportWorkload ReportKind = "workload"
)

type ReportArgs struct {
	Kind ReportKind
}

type PathArgs struct {
	Path string
}

type ExportKind string

const (
	ExportDefinitions ExportKind = "definitions"
	ExportHolidays    ExportKind = "holidays"
)

// ExportArgs writes to stdout when Path is empty.
type ExportArgs struct {
	Kind ExportKind
	Path string
}

// DefaultPreviewCount is used when preview is given no count.
const DefaultPreviewCount = 5

type PreviewArgs struct {
	DefinitionID string
	Count        int
}

type Command struct {
	Type        Type
	Raw         string
	Holidays    *HolidaysArgs
	Report      *ReportArgs
	Permissions *PathArgs
	Import      *PathArgs
	Export      *ExportArgs
	Preview     *PreviewArgs
}

// Parse splits a single command line on whitespace. Use ParseArgs when the
// arguments are already separated, for example from os.Args.
func Parse(input string) (Command, error) {
	return ParseArgs(strings.Fields(input))
}

func ParseArgs(argv []string) (Command, error) {
	raw := strings.TrimSpace(strings.Join(argv, " "))
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	head := strings.ToLower(strings.TrimSpace(argv[0]))
	args := argv[1:]

	switch Type(head) {
	case TypeGenerate, TypeNotify, TypeDaemon, TypeDashboard:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes no arguments", head)}
		}
		return Command{Type: Type(head), Raw: raw}, nil
	case TypeHolidays:
		return parseHolidays(raw, args)
	case TypeReport:
		return parseReport(raw, args)
	case TypePermissions:
		path, err := parsePath(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypePermissions, Raw: raw, Permissions: &PathArgs{Path: path}}, nil
	case TypeImport:
		path, err := parsePath(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeImport, Raw: raw, Import: &PathArgs{Path: path}}, nil
	case TypeExport:
		return parseExport(raw, args)
	case TypePreview:
		return parsePreview(raw, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseHolidays(raw string, args []string) (Command, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "holidays requires a list id or \"all\""}
	}
	id := strings.TrimSpace(args[0])
	if strings.EqualFold(id, AllLists) {
		id = AllLists
	}
	return Command{Type: TypeHolidays, Raw: raw, Holidays: &HolidaysArgs{ListID: id}}, nil
}

func parseReport(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "report requires one of summary, overdue, upcoming, workload"}
	}
	kind := ReportKind(strings.ToLower(args[0]))
	switch kind {
	case ReportSummary, ReportOverdue, ReportUpcoming, ReportWorkload:
		return Command{Type: TypeReport, Raw: raw, Report: &ReportArgs{Kind: kind}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown report: %s", args[0])}
	}
}

func parseExport(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "export requires definitions or holidays and an optional path"}
	}
	kind := ExportKind(strings.ToLower(args[0]))
	if kind != ExportDefinitions && kind != ExportHolidays {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown export: %s", args[0])}
	}
	out := &ExportArgs{Kind: kind}
	if len(args) == 2 {
		out.Path = args[1]
	}
	return Command{Type: TypeExport, Raw: raw, Export: out}, nil
}

func parsePreview(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 || strings.TrimSpace(args[0]) == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "preview requires a definition id and an optional count"}
	}
	out := &PreviewArgs{DefinitionID: strings.TrimSpace(args[0]), Count: DefaultPreviewCount}
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("preview count must be a positive number: %s", args[1])}
		}
		out.Count = n
	}
	return Command{Type: TypePreview, Raw: raw, Preview: out}, nil
}

func parsePath(head string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a yaml path", head)}
	}
	return args[0], nil
}
