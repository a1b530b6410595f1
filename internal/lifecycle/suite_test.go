package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/l0p7/objectprobe/internal/executor"
	"github.com/l0p7/objectprobe/internal/fakeapi"
	"github.com/l0p7/objectprobe/internal/metrics"
	"github.com/stretchr/testify/require"
)

func newFakeSuite(t *testing.T, handler http.Handler, rec *metrics.Recorder) *Suite {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	exec, err := executor.New(srv.URL, executor.Options{Client: srv.Client(), Metrics: rec})
	require.NoError(t, err)
	return NewSuite(exec, DefaultFixtures(), Options{Metrics: rec})
}

func requireAllPassed(t *testing.T, results []Result) {
	t.Helper()
	require.Len(t, results, len(Scenarios()))
	for _, result := range results {
		require.True(t, result.Passed(), "scenario %s failed: %v", result.Name, result.Err)
	}
}

func TestSuiteRunPassesAgainstFake(t *testing.T) {
	variants := map[string]fakeapi.Options{
		"public api statuses": {},
		"created and no content": {
			CreateStatus: http.StatusCreated,
			DeleteStatus: http.StatusNoContent,
		},
	}
	for name, opts := range variants {
		t.Run(name, func(t *testing.T) {
			suite := newFakeSuite(t, fakeapi.NewHandler(opts), nil)
			results, err := suite.Run(context.Background(), "")
			require.NoError(t, err)
			requireAllPassed(t, results)
		})
	}
}

func TestSuiteRunPassesAgainstValkeyBackedFake(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	store, err := fakeapi.NewValkeyStore(fakeapi.ValkeyConfig{Address: server.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{Store: store}), nil)
	results, err := suite.Run(context.Background(), "")
	require.NoError(t, err)
	requireAllPassed(t, results)

	objects, err := suite.ListObjects(context.Background())
	require.NoError(t, err)
	require.Empty(t, objects, "scenarios should remove the objects they create")
}

func TestSuiteRunFilter(t *testing.T) {
	suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{}), nil)

	results, err := suite.Run(context.Background(), "^(update|delete)_object$")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "update_object", results[0].Name)
	require.Equal(t, "delete_object", results[1].Name)

	_, err = suite.Run(context.Background(), "nothing_matches")
	require.ErrorIs(t, err, ErrNoScenarios)

	_, err = suite.Run(context.Background(), "([")
	require.Error(t, err)
}

func TestSuiteRunStopsOnCancelledContext(t *testing.T) {
	suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := suite.Run(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
}

func TestSuiteRecordsScenarioMetrics(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{}), rec)

	_, err := suite.Run(context.Background(), "add_object")
	require.NoError(t, err)

	families, err := rec.Gatherer().Gather()
	require.NoError(t, err)
	var scenarioSeen, requestSeen bool
	for _, mf := range families {
		switch mf.GetName() {
		case "objectprobe_lifecycle_scenarios_total":
			scenarioSeen = len(mf.GetMetric()) > 0
		case "objectprobe_http_requests_total":
			requestSeen = len(mf.GetMetric()) > 0
		}
	}
	require.True(t, scenarioSeen)
	require.True(t, requestSeen)
}

func TestCreateObjectWithoutIDIsAssertionFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"Test Object"}`))
	})
	suite := newFakeSuite(t, handler, nil)

	_, err := suite.CreateObject(context.Background())
	require.ErrorIs(t, err, ErrAssertion)

	var assertion *AssertionError
	require.ErrorAs(t, err, &assertion)
	require.Equal(t, "id", assertion.Field)
}

func TestScenarioFailuresKeepTheirClass(t *testing.T) {
	fake := fakeapi.NewHandler(fakeapi.Options{})

	t.Run("update not reflected", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"ignored":true}`))
				return
			}
			fake.ServeHTTP(w, r)
		})
		suite := newFakeSuite(t, handler, nil)

		err := UpdateObject(context.Background(), suite)
		var assertion *AssertionError
		require.ErrorAs(t, err, &assertion)
		require.Equal(t, "name", assertion.Field)
		require.Equal(t, "Updated Object", assertion.Want)
		require.Equal(t, "Test Object", assertion.Got)
	})

	t.Run("delete not honoured", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			fake.ServeHTTP(w, r)
		})
		suite := newFakeSuite(t, handler, nil)

		err := DeleteObject(context.Background(), suite)
		require.ErrorIs(t, err, executor.ErrUnexpectedStatus)
		require.NotErrorIs(t, err, executor.ErrTransport)
		require.True(t, strings.Contains(err.Error(), "confirm object"), err.Error())
	})

	t.Run("list without body", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		suite := newFakeSuite(t, handler, nil)

		err := GetAllObjects(context.Background(), suite)
		require.ErrorIs(t, err, executor.ErrEmptyBody)
	})

	t.Run("read not idempotent", func(t *testing.T) {
		var reads int
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/objects/") {
				reads++
				id := strings.TrimPrefix(r.URL.Path, "/objects/")
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "name": "Test Object", "data": map[string]any{"read": reads}})
				return
			}
			fake.ServeHTTP(w, r)
		})
		suite := newFakeSuite(t, handler, nil)

		err := GetObjectByID(context.Background(), suite)
		var assertion *AssertionError
		require.ErrorAs(t, err, &assertion)
		require.Equal(t, "data", assertion.Field)
	})

	t.Run("unreachable target", func(t *testing.T) {
		srv := httptest.NewServer(fake)
		base := srv.URL
		srv.Close()

		exec, err := executor.New(base, executor.Options{})
		require.NoError(t, err)
		suite := NewSuite(exec, DefaultFixtures(), Options{})

		results, err := suite.Run(context.Background(), "get_all_objects")
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.False(t, results[0].Passed())
		require.ErrorIs(t, results[0].Err, executor.ErrTransport)
	})
}

func TestObjectPathEscapesID(t *testing.T) {
	require.Equal(t, "objects/abc", objectPath("abc"))
	require.Equal(t, "objects/a%2Fb", objectPath("a/b"))
}

func TestEachScenarioRemovesItsObjects(t *testing.T) {
	for _, scenario := range Scenarios() {
		t.Run(scenario.Name, func(t *testing.T) {
			suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{}), nil)
			ctx := context.Background()

			require.NoError(t, scenario.Run(ctx, suite))

			objects, err := suite.ListObjects(ctx)
			require.NoError(t, err)
			require.Empty(t, objects)
		})
	}
}

func TestCreateObjectHelperDeletesOnCleanup(t *testing.T) {
	suite := newFakeSuite(t, fakeapi.NewHandler(fakeapi.Options{}), nil)
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		createObject(t, suite)
		objects, err := suite.ListObjects(ctx)
		require.NoError(t, err)
		require.Len(t, objects, 1)
	})

	objects, err := suite.ListObjects(ctx)
	require.NoError(t, err)
	require.Empty(t, objects)
}
