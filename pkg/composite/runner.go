package composite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

// StepState is a composite step's position in its lifecycle.
type StepState string

const (
	StepPending   StepState = "pending"
	StepReady     StepState = "ready"
	StepRunning   StepState = "running"
	StepSuccess   StepState = "success"
	StepFailed    StepState = "failed"
	StepAborted   StepState = "aborted"
	StepContinued StepState = "continued" // failed but ContinueOnError let the plan proceed
)

// StepResult records one step's outcome.
type StepResult struct {
	Step     endpoint.CompositeStep
	State    StepState
	Response any
	Err      error
	Duration time.Duration
}

// StepExecutor invokes a single proxy call for one composite step,
// returning the decoded JSON response body. The dispatcher wires this to
// proxyhandler without going over the network loopback.
type StepExecutor func(ctx context.Context, step endpoint.CompositeStep, requestBody string) (any, error)

// Result is the overall outcome of running a composite endpoint.
type Result struct {
	Steps   []StepResult
	Aborted bool
}

// Run executes every step of def.Composite.Steps in dependency order,
// running steps with no remaining unmet dependency concurrently, and
// propagates an even deadline slice of ctx's remaining budget to each step.
func Run(ctx context.Context, def *endpoint.Definition, requestScope any, exec StepExecutor) (*Result, error) {
	order, err := endpoint.TopoSort(def.Composite.Steps)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, "composite plan is not a valid DAG", err)
	}

	var mu sync.Mutex
	results := make(map[string]*StepResult, len(order))
	scope := Scope{"$request": requestScope}
	aborted := false

	remaining := len(order)
	done := make(chan string, len(order))
	started := make(map[string]bool, len(order))

	deadline, hasDeadline := ctx.Deadline()
	var perStepBudget time.Duration
	if hasDeadline && len(order) > 0 {
		perStepBudget = time.Until(deadline) / time.Duration(len(order))
	}

	byName := make(map[string]endpoint.CompositeStep, len(order))
	for _, s := range order {
		byName[s.Name] = s
	}

	ready := func() []endpoint.CompositeStep {
		mu.Lock()
		defer mu.Unlock()
		var out []endpoint.CompositeStep
		for _, s := range order {
			if started[s.Name] {
				continue
			}
			if aborted {
				continue
			}
			if dependenciesSatisfied(s, results) {
				started[s.Name] = true
				out = append(out, s)
			}
		}
		return out
	}

	runStep := func(step endpoint.CompositeStep) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if perStepBudget > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, perStepBudget)
			defer cancel()
		}

		var res StepResult
		if step.IsArray {
			res = runArrayStep(stepCtx, step, &mu, scope, results, exec)
		} else {
			mu.Lock()
			body, err := RenderString(step.TemplateBody, withStepResults(scope, results))
			mu.Unlock()

			res.Step = step
			if err != nil {
				res.State = StepFailed
				res.Err = err
			} else {
				resp, err := exec(stepCtx, step, body)
				if err != nil {
					if step.ContinueOnError {
						res.State = StepContinued
					} else {
						res.State = StepFailed
					}
					res.Err = err
				} else {
					res.State = StepSuccess
					res.Response = resp
				}
			}
		}
		res.Duration = time.Since(start)

		mu.Lock()
		results[step.Name] = &res
		if res.State == StepFailed {
			aborted = true
		}
		mu.Unlock()
		done <- step.Name
	}

	for remaining > 0 {
		batch := ready()
		if len(batch) == 0 {
			mu.Lock()
			stillAborted := aborted
			mu.Unlock()
			if stillAborted {
				break
			}
			// No ready steps and not aborted: dependency graph guarantees
			// this cannot happen for a validated DAG, but don't spin.
			break
		}
		var wg sync.WaitGroup
		for _, s := range batch {
			wg.Add(1)
			go func(s endpoint.CompositeStep) {
				defer wg.Done()
				runStep(s)
			}(s)
		}
		wg.Wait()
		remaining -= len(batch)
	}

	out := &Result{Aborted: aborted}
	for _, s := range order {
		if r, ok := results[s.Name]; ok {
			out.Steps = append(out.Steps, *r)
		} else {
			out.Steps = append(out.Steps, StepResult{Step: s, State: StepAborted})
		}
	}
	return out, nil
}

// runArrayStep executes step once per element of its source array,
// substituting each element as $item, and collects responses into an array
// preserving input order. SourceProperty names the scope root the array is
// resolved from ("$request" by default, or an earlier step's name to chain
// off a prior response).
func runArrayStep(ctx context.Context, step endpoint.CompositeStep, mu *sync.Mutex, scope Scope, results map[string]*StepResult, exec StepExecutor) StepResult {
	root := "$request"
	if step.SourceProperty != "" {
		root = step.SourceProperty
	}

	mu.Lock()
	arr, err := resolvePath(withStepResults(scope, results), root+"."+step.ArrayProperty)
	mu.Unlock()

	res := StepResult{Step: step}
	if err != nil {
		res.State = StepFailed
		res.Err = err
		return res
	}
	elements, ok := arr.([]any)
	if !ok {
		res.State = StepFailed
		res.Err = fmt.Errorf("composite: step %q: %s.%s is not an array", step.Name, root, step.ArrayProperty)
		return res
	}

	responses := make([]any, len(elements))
	failed := false
	for i, item := range elements {
		mu.Lock()
		itemScope := withStepResults(scope, results)
		itemScope["$item"] = item
		body, err := RenderString(step.TemplateBody, itemScope)
		mu.Unlock()
		if err != nil {
			res.Err = err
			failed = true
			break
		}
		resp, err := exec(ctx, step, body)
		if err != nil {
			res.Err = err
			failed = true
			if !step.ContinueOnError {
				break
			}
			responses[i] = map[string]any{"error": err.Error()}
			continue
		}
		responses[i] = resp
	}

	res.Response = responses
	switch {
	case failed && step.ContinueOnError:
		res.State = StepContinued
	case failed:
		res.State = StepFailed
	default:
		res.State = StepSuccess
	}
	return res
}

func dependenciesSatisfied(step endpoint.CompositeStep, results map[string]*StepResult) bool {
	for _, dep := range step.DependsOn {
		r, ok := results[dep]
		if !ok {
			return false
		}
		if r.State != StepSuccess && r.State != StepContinued {
			return false
		}
	}
	return true
}

func withStepResults(base Scope, results map[string]*StepResult) Scope {
	scope := make(Scope, len(base)+len(results))
	for k, v := range base {
		scope[k] = v
	}
	for name, r := range results {
		scope[name] = r.Response
	}
	return scope
}

// MarshalResponses renders the final composite response body:
// {success, stepResults}, where stepResults maps each step's name to its
// raw response (or {error} when it failed without a response).
func MarshalResponses(result *Result) ([]byte, error) {
	stepResults := make(map[string]any, len(result.Steps))
	for _, s := range result.Steps {
		switch {
		case s.Response != nil:
			stepResults[s.Step.Name] = s.Response
		case s.Err != nil:
			stepResults[s.Step.Name] = map[string]any{"error": s.Err.Error()}
		}
	}
	out := map[string]any{
		"success":     !result.Aborted,
		"stepResults": stepResults,
	}
	return json.Marshal(out)
}
