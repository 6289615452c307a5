package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/trace"
)

// Report collects the results of one scenario.
type Report struct {
	Name    string
	Path    string
	Results []Result
	Dur     time.Duration
}

// Passed counts passing results.
func (r *Report) Passed() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Pass() {
			n++
		}
	}
	return n
}

// OK reports whether every result passed.
func (r *Report) OK() bool {
	return r.Passed() == len(r.Results)
}

// Options configure RunAll.
type Options struct {
	Jobs     int           // concurrent scenarios; <= 0 means one
	Machine  interp.Config // Tracer is replaced by the context's tracer
	Progress ProgressSink  // optional
}

// Run evaluates every query of s in a fresh interpretation context. An
// interpreter bug aborts the scenario with a *interp.Bug error.
func (s *Scenario) Run(ctx context.Context, machine interp.Config) (rep *Report, err error) {
	if len(s.Queries) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrEmpty)
	}
	span, ctx := trace.StartSpan(ctx, trace.ScopeModule, "scenario:"+s.Name)
	defer func() {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		} else if rep != nil {
			span.WithExtra("passed", strconv.Itoa(rep.Passed())).WithExtra("queries", strconv.Itoa(len(rep.Results)))
		}
		span.End(detail)
	}()
	defer interp.Catch(&err)

	machine.Tracer = trace.FromContext(ctx)
	cx := interp.New(s.eng, s.Mem, machine)
	start := time.Now()
	rep = &Report{Name: s.Name, Path: s.Path, Results: make([]Result, 0, len(s.Queries))}
	parent := trace.ParentSpan(ctx)
	for i := range s.Queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := &s.Queries[i]
		res := s.Eval(cx, q)
		trace.Point(machine.Tracer, trace.ScopeNode, string(q.Op), q.Name+" "+verdict(&res), parent)
		rep.Results = append(rep.Results, res)
	}
	rep.Dur = time.Since(start)
	return rep, nil
}

func verdict(r *Result) string {
	if r.Pass() {
		return "pass"
	}
	return "fail"
}

// RunAll loads, builds and runs the scenario files concurrently over one
// layout engine. Reports keep the order of paths. The first load error or
// interpreter bug cancels the remaining scenarios.
func RunAll(ctx context.Context, eng *layout.Engine, paths []string, opts Options) ([]*Report, error) {
	reports := make([]*Report, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	g.SetLimit(jobs)
	for _, path := range paths {
		emit(opts.Progress, Event{Path: path, Status: StatusQueued})
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := runFile(gctx, eng, path, opts)
			if err != nil {
				emit(opts.Progress, Event{Path: path, Status: StatusError})
				return err
			}
			ev := Event{Path: path, Status: StatusPassed, Passed: rep.Passed(), Total: len(rep.Results)}
			if !rep.OK() {
				ev.Status = StatusFailed
			}
			emit(opts.Progress, ev)
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func runFile(ctx context.Context, eng *layout.Engine, path string, opts Options) (*Report, error) {
	emit(opts.Progress, Event{Path: path, Status: StatusLoading})
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(f, eng)
	if err != nil {
		return nil, err
	}
	emit(opts.Progress, Event{Path: path, Status: StatusRunning})
	rep, err := s.Run(ctx, opts.Machine)
	if err != nil {
		var bug *interp.Bug
		if errors.As(err, &bug) {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		return nil, err
	}
	return rep, nil
}
