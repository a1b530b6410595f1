package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/l0p7/objectprobe/internal/metrics"
)

// ErrNoScenarios is returned by Run when the filter selects nothing.
var ErrNoScenarios = errors.New("lifecycle: no scenario matches filter")

// Scenario is one independent check against the objects collection.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, s *Suite) error
}

// Result is the verdict of one scenario run.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Passed reports whether the scenario succeeded.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Scenarios lists every scenario in declaration order.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "get_all_objects",
			Description: "GET objects returns 200",
			Run:         GetAllObjects,
		},
		{
			Name:        "add_object",
			Description: "POST objects returns 201 or 200 with an id",
			Run:         AddObject,
		},
		{
			Name:        "get_object_by_id",
			Description: "GET objects/{id} returns the created object",
			Run:         GetObjectByID,
		},
		{
			Name:        "update_object",
			Description: "PUT objects/{id} changes the stored name",
			Run:         UpdateObject,
		},
		{
			Name:        "delete_object",
			Description: "DELETE objects/{id} makes later reads 404",
			Run:         DeleteObject,
		},
	}
}

// GetAllObjects lists the collection.
func GetAllObjects(ctx context.Context, s *Suite) error {
	_, err := s.ListObjects(ctx)
	return err
}

// AddObject creates an object and checks an id came back.
func AddObject(ctx context.Context, s *Suite) error {
	id, err := s.CreateObject(ctx)
	if err != nil {
		return err
	}
	s.cleanup(ctx, id)
	return nil
}

// GetObjectByID creates an object, reads it back twice and checks the id
// round-trips and that the repeated read is stable.
func GetObjectByID(ctx context.Context, s *Suite) error {
	id, err := s.CreateObject(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup(ctx, id)

	first, err := s.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if err := expectEqual("id", id, first.ID); err != nil {
		return err
	}

	second, err := s.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if err := expectEqual("name", first.Name, second.Name); err != nil {
		return err
	}
	return expectEqual("data", canonicalJSON(first.Data), canonicalJSON(second.Data))
}

// UpdateObject creates an object, replaces it and checks the new name is served.
func UpdateObject(ctx context.Context, s *Suite) error {
	id, err := s.CreateObject(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup(ctx, id)

	update := s.fixtures.updatePayload()
	if err := s.UpdateObject(ctx, id, update); err != nil {
		return err
	}
	got, err := s.GetObject(ctx, id)
	if err != nil {
		return err
	}
	return expectEqual("name", update.Name, got.Name)
}

// DeleteObject creates an object, deletes it and checks a later read is 404.
func DeleteObject(ctx context.Context, s *Suite) error {
	id, err := s.CreateObject(ctx)
	if err != nil {
		return err
	}
	if err := s.DeleteObject(ctx, id); err != nil {
		return err
	}
	return s.ExpectGone(ctx, id)
}

// Run executes the scenarios whose name matches filter, one after another.
// An empty filter selects all of them.
func (s *Suite) Run(ctx context.Context, filter string) ([]Result, error) {
	selected, err := Select(filter)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(selected))
	for _, scenario := range selected {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.runOne(ctx, scenario))
	}
	return results, nil
}

// Select returns the scenarios whose name matches the filter expression.
func Select(filter string) ([]Scenario, error) {
	all := Scenarios()
	if filter == "" {
		return all, nil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: scenario filter: %w", err)
	}
	var selected []Scenario
	for _, scenario := range all {
		if re.MatchString(scenario.Name) {
			selected = append(selected, scenario)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoScenarios, filter)
	}
	return selected, nil
}

func (s *Suite) runOne(ctx context.Context, scenario Scenario) Result {
	logger := s.logger.With(slog.String("scenario", scenario.Name))
	logger.Debug("scenario starting")

	start := time.Now()
	err := scenario.Run(ctx, s)
	elapsed := time.Since(start)

	verdict := metrics.ScenarioPassed
	if err != nil {
		verdict = metrics.ScenarioFailed
		logger.Error("scenario failed", slog.Duration("duration", elapsed), slog.Any("error", err))
	} else {
		logger.Info("scenario passed", slog.Duration("duration", elapsed))
	}
	s.metrics.ObserveScenario(scenario.Name, verdict, elapsed)
	return Result{Name: scenario.Name, Err: err, Duration: elapsed}
}

func canonicalJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}
