package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/history"
	"github.com/cgast/gigsmith/pkg/spec"
)

// Backend is what the gig methods are served from. Runs and Events are
// optional; their methods report CodeHistoryOff when unset.
type Backend struct {
	Service *gig.Service
	Runs    history.Reader
	Events  *events.MemoryBus
}

// RegisterGigMethods registers the listing methods on h.
func RegisterGigMethods(h *Handler, b Backend) {
	svc := b.Service

	h.Register(MethodGigGenerate, func(ctx context.Context, params json.RawMessage) (any, *Error) {
		p, perr := ParseParams[GenerateParams](params)
		if perr != nil {
			return nil, perr
		}
		req := gig.Request{Keyword: p.Keyword}
		if err := svc.Validate(req); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		resp := svc.Generate(ctx, req)
		if resp.Error != "" {
			return nil, &Error{Code: CodeGenerateFailed, Message: resp.Error, Data: map[string]any{"run_id": resp.RunID}}
		}
		return resp, nil
	})

	h.Register(MethodGigValidate, func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, perr := ParseParams[GenerateParams](params)
		if perr != nil {
			return nil, perr
		}
		if err := svc.Validate(gig.Request{Keyword: p.Keyword}); err != nil {
			return ValidateResult{Error: err.Error()}, nil
		}
		return ValidateResult{Valid: true}, nil
	})

	h.Register(MethodGraphPlan, func(context.Context, json.RawMessage) (any, *Error) {
		plan, err := spec.GeneratePlan("gig", svc.Specs())
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return plan, nil
	})

	h.Register(MethodTasksList, func(context.Context, json.RawMessage) (any, *Error) {
		specs := svc.Specs()
		infos := make([]TaskInfo, len(specs))
		for i, sp := range specs {
			info := TaskInfo{ID: sp.ID, Description: sp.Description, DependsOn: sp.DependsOn}
			for _, f := range sp.Fields {
				info.Fields = append(info.Fields, f.Name)
			}
			infos[i] = info
		}
		return infos, nil
	})

	h.Register(MethodTasksDescribe, func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, perr := ParseParams[TaskParams](params)
		if perr != nil {
			return nil, perr
		}
		sp, ok := svc.Graph().Spec(p.ID)
		if !ok {
			return nil, &Error{Code: CodeTaskNotFound, Message: "task not found: " + p.ID}
		}
		return sp, nil
	})

	h.Register(MethodRunsList, func(_ context.Context, params json.RawMessage) (any, *Error) {
		if b.Runs == nil {
			return nil, historyOff()
		}
		p, perr := ParseParams[RunsListParams](params)
		if perr != nil {
			return nil, perr
		}
		if p.Limit < 0 {
			return nil, &Error{Code: CodeInvalidParams, Message: "limit must be non-negative"}
		}
		reports, err := b.Runs.List(p.Limit)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		if reports == nil {
			reports = []history.Report{}
		}
		return reports, nil
	})

	h.Register(MethodRunsGet, func(_ context.Context, params json.RawMessage) (any, *Error) {
		if b.Runs == nil {
			return nil, historyOff()
		}
		p, perr := ParseParams[RunParams](params)
		if perr != nil {
			return nil, perr
		}
		r, err := b.Runs.Get(p.RunID)
		switch {
		case errors.Is(err, history.ErrNotFound):
			return nil, &Error{Code: CodeRunNotFound, Message: err.Error()}
		case err != nil:
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return r, nil
	})

	h.Register(MethodRunsEvents, func(_ context.Context, params json.RawMessage) (any, *Error) {
		if b.Events == nil {
			return nil, historyOff()
		}
		p, perr := ParseParams[RunParams](params)
		if perr != nil {
			return nil, perr
		}
		evs := b.Events.RunHistory(p.RunID)
		if evs == nil {
			evs = []events.Event{}
		}
		return evs, nil
	})
}

func historyOff() *Error {
	return &Error{Code: CodeHistoryOff, Message: "run history is disabled"}
}
