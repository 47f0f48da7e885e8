package commands

import (
	"context"
	"fmt"
)

type Result struct {
	Message string
}

type Handlers struct {
	Generate    func(context.Context) (Result, error)
	Holidays    func(context.Context, HolidaysArgs) (Result, error)
	Notify      func(context.Context) (Result, error)
	Report      func(context.Context, ReportArgs) (Result, error)
	Permissions func(context.Context, PathArgs) (Result, error)
	Import      func(context.Context, PathArgs) (Result, error)
	Export      func(context.Context, ExportArgs) (Result, error)
	Daemon      func(context.Context) (Result, error)
	Dashboard   func(context.Context) (Result, error)
	Preview     func(context.Context, PreviewArgs) (Result, error)
}

func Execute(ctx context.Context, cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeGenerate:
		return call(ctx, cmd.Type, handlers.Generate)
	case TypeNotify:
		return call(ctx, cmd.Type, handlers.Notify)
	case TypeDaemon:
		return call(ctx, cmd.Type, handlers.Daemon)
	case TypeDashboard:
		return call(ctx, cmd.Type, handlers.Dashboard)
	case TypeHolidays:
		return callWith(ctx, cmd.Type, handlers.Holidays, cmd.Holidays)
	case TypeReport:
		return callWith(ctx, cmd.Type, handlers.Report, cmd.Report)
	case TypePermissions:
		return callWith(ctx, cmd.Type, handlers.Permissions, cmd.Permissions)
	case TypeImport:
		return callWith(ctx, cmd.Type, handlers.Import, cmd.Import)
	case TypeExport:
		return callWith(ctx, cmd.Type, handlers.Export, cmd.Export)
	case TypePreview:
		return callWith(ctx, cmd.Type, handlers.Preview, cmd.Preview)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func call(ctx context.Context, t Type, fn func(context.Context) (Result, error)) (Result, error) {
	if fn == nil {
		return Result{}, missing(t)
	}
	return fn(ctx)
}

func callWith[A any](ctx context.Context, t Type, fn func(context.Context, A) (Result, error), args *A) (Result, error) {
	if fn == nil {
		return Result{}, missing(t)
	}
	if args == nil {
		return Result{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s arguments missing", t)}
	}
	return fn(ctx, *args)
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
