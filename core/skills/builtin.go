package skills

import (
	"context"
	"time"

	"github.com/adalundhe/parley/core/calc"
	coreerrors "github.com/adalundhe/parley/core/errors"
)

const (
	TimeLayout = "3:04 PM"
	DateLayout = "Monday, January 2, 2006"
)

// Builtins returns the skills every runtime starts with.
func Builtins(now func() time.Time) []*Builder {
	if now == nil {
		now = time.Now
	}
	return []*Builder{
		NewSkill("current_time").
			Name("Current time").
			Description("Tells the local time").
			Category("utility").
			Handler(func(context.Context, Params, ExecContext) (any, error) {
				return now().Format(TimeLayout), nil
			}),
		NewSkill("current_date").
			Name("Current date").
			Description("Tells today's date").
			Category("utility").
			Handler(func(context.Context, Params, ExecContext) (any, error) {
				return now().Format(DateLayout), nil
			}),
		NewSkill("calculate").
			Name("Calculator").
			Description("Evaluates arithmetic with + - * / and parentheses").
			Category("utility").
			StringParam("expression", "Arithmetic expression or sentence containing one", true).
			Handler(calculate),
		NewSkill("create_reminder").
			Name("Create reminder").
			Description("Describes a reminder for the caller to schedule").
			Category("productivity").
			StringParam("content", "What to be reminded about", true).
			DefaultParam("time", "string", "When to be reminded", "").
			Handler(func(_ context.Context, p Params, _ ExecContext) (any, error) {
				return map[string]any{"type": "reminder", "content": p.String("content"), "time": p.String("time")}, nil
			}),
		NewSkill("take_note").
			Name("Take note").
			Description("Describes a note for the caller to save").
			Category("productivity").
			StringParam("content", "Note text", true).
			Handler(func(_ context.Context, p Params, _ ExecContext) (any, error) {
				return map[string]any{"type": "note", "content": p.String("content")}, nil
			}),
	}
}

func calculate(_ context.Context, p Params, _ ExecContext) (any, error) {
	expr, ok := calc.Extract(p.String("expression"))
	if !ok {
		return nil, coreerrors.New(coreerrors.KindInvalidInput, "no arithmetic found")
	}
	v, err := calc.Evaluate(expr)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInvalidInput, "cannot evaluate "+expr, err)
	}
	return v, nil
}
