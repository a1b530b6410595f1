package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/l0p7/objectprobe/internal/config"
	"github.com/l0p7/objectprobe/internal/executor"
	"github.com/l0p7/objectprobe/internal/fakeapi"
	"github.com/stretchr/testify/require"
)

// target returns a Suite, and the executor behind it, for the objects API
// under test. By default that is an in-process fake. OBJECTPROBE_LIVE=1
// points the tests at the configured public API instead; only the target
// and fixtures keys are read from OBJECTPROBE_* variables, so fake API
// settings left in the environment do not affect live runs.
func target(t *testing.T) (*Suite, *executor.Executor) {
	t.Helper()
	if os.Getenv("OBJECTPROBE_LIVE") == "" {
		srv := httptest.NewServer(fakeapi.NewHandler(fakeapi.Options{}))
		t.Cleanup(srv.Close)
		exec, err := executor.New(srv.URL, executor.Options{Client: srv.Client()})
		require.NoError(t, err)
		return NewSuite(exec, DefaultFixtures(), Options{}), exec
	}
	if testing.Short() {
		t.Skip("skipping live objects API test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := config.NewLoader("OBJECTPROBE").LoadProbe(ctx)
	require.NoError(t, err)
	exec, err := executor.New(cfg.Target.BaseURL, executor.Options{
		Timeout:   cfg.Target.Timeout,
		UserAgent: cfg.Target.UserAgent,
	})
	require.NoError(t, err)
	return NewSuite(exec, FixturesFromConfig(cfg.Fixtures), Options{}), exec
}

// createObject creates the fixture object and deletes it when the test ends.
func createObject(t *testing.T, suite *Suite) string {
	t.Helper()
	id, err := suite.CreateObject(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	t.Cleanup(func() {
		_ = suite.DeleteObject(context.Background(), id)
	})
	return id
}

func TestGetAllObjectsShouldReturnOK(t *testing.T) {
	t.Parallel()
	suite, exec := target(t)
	ctx := context.Background()

	require.NoError(t, GetAllObjects(ctx, suite))

	resp, err := exec.Execute(ctx, executor.Get("objects"), executor.Expect(http.StatusOK))
	require.NoError(t, err)
	var objects []Object
	require.NoError(t, resp.DecodeJSON(&objects))
}

func TestAddObjectShouldReturnCreatedOrOK(t *testing.T) {
	t.Parallel()
	suite, _ := target(t)

	require.NoError(t, AddObject(context.Background(), suite))
}

func TestGetObjectByIDShouldReturnCorrectObject(t *testing.T) {
	t.Parallel()
	suite, exec := target(t)
	ctx := context.Background()

	require.NoError(t, GetObjectByID(ctx, suite))

	id := createObject(t, suite)
	resp, err := exec.Execute(ctx, executor.Get(objectPath(id)), executor.Expect(http.StatusOK))
	require.NoError(t, err)
	var object Object
	require.NoError(t, resp.DecodeJSON(&object))
	require.Equal(t, id, object.ID)
	require.Equal(t, suite.Fixtures().CreateName, object.Name)
}

func TestUpdateObjectShouldReturnOK(t *testing.T) {
	t.Parallel()
	suite, exec := target(t)
	ctx := context.Background()

	require.NoError(t, UpdateObject(ctx, suite))

	id := createObject(t, suite)
	require.NoError(t, suite.UpdateObject(ctx, id, suite.Fixtures().updatePayload()))
	resp, err := exec.Execute(ctx, executor.Get(objectPath(id)), executor.Expect(http.StatusOK))
	require.NoError(t, err)
	name, ok := resp.Field("name")
	require.True(t, ok)
	require.Equal(t, suite.Fixtures().UpdateName, name)
}

func TestDeleteObjectShouldReturnNoContentOrOK(t *testing.T) {
	t.Parallel()
	suite, exec := target(t)
	ctx := context.Background()

	require.NoError(t, DeleteObject(ctx, suite))

	id := createObject(t, suite)
	require.NoError(t, suite.DeleteObject(ctx, id))
	resp, err := exec.Execute(ctx, executor.Get(objectPath(id)), executor.Expect(http.StatusNotFound))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
