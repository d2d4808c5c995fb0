package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/upload"
)

type testApp struct {
	*App
	out *bytes.Buffer
}

func newTestApp(t *testing.T, fs afero.Fs, stdin string) *testApp {
	t.Helper()
	a := New()
	a.logger = zerolog.Nop()
	a.fs = fs
	a.stdin = strings.NewReader(stdin)
	out := &bytes.Buffer{}
	a.stdout = out
	return &testApp{App: a, out: out}
}

type backend struct {
	mu       sync.Mutex
	payloads []model.Payload
	server   *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p model.Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		b.mu.Lock()
		b.payloads = append(b.payloads, p)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"message":"Success","warnings":[],"errors":[]}`)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) uploader(logger zerolog.Logger, _ string) upload.Uploader {
	return upload.New(logger, b.server.URL)
}

func TestApp_Options(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "caseflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
target: from-file
files: /files
build:
  name: nightly
  result: pass
`), 0644))

	tests := []struct {
		name string
		env  map[string]string
		args []string
		want config.Options
	}{
		{
			name: "defaults",
			want: config.Options{
				TempDir:  config.DefaultTempDir(),
				Endpoint: config.DefaultEndpoint,
			},
		},
		{
			name: "config file",
			args: []string{"--config", configPath},
			want: config.Options{
				Target:   "from-file",
				Files:    "/files",
				TempDir:  config.DefaultTempDir(),
				Endpoint: config.DefaultEndpoint,
				Build:    &model.Build{Name: "nightly", Result: "pass"},
			},
		},
		{
			name: "flags override the config file",
			args: []string{"--config", configPath, "--target", "from-flag", "--build-result", "fail", "--temp-dir", "/shared"},
			want: config.Options{
				Target:   "from-flag",
				Files:    "/files",
				TempDir:  "/shared",
				Endpoint: config.DefaultEndpoint,
				Build:    &model.Build{Name: "nightly", Result: "fail"},
			},
		},
		{
			name: "environment",
			env: map[string]string{
				"CASEFLOW_TARGET":       "from-env",
				"CASEFLOW_ENDPOINT":     "http://localhost/results",
				"CASEFLOW_BUILD_NAME":   "ci",
				"CASEFLOW_BUILD_REASON": "red",
			},
			want: config.Options{
				Target:   "from-env",
				TempDir:  config.DefaultTempDir(),
				Endpoint: "http://localhost/results",
				Build:    &model.Build{Name: "ci", Reason: "red"},
			},
		},
		{
			name: "build fields without a name are dropped",
			args: []string{"--build-result", "pass"},
			want: config.Options{
				TempDir:  config.DefaultTempDir(),
				Endpoint: config.DefaultEndpoint,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			app := newTestApp(t, afero.NewMemMapFs(), "")

			var got config.Options
			app.cli.Commands = append(app.cli.Commands, &cli.Command{
				Name: "options",
				Action: func(ctx *cli.Context) error {
					var err error
					got, err = app.options(ctx)
					return err
				},
			})

			args := append([]string{AppName}, tt.args...)
			require.NoError(t, app.Run(append(args, "options")))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestApp_RecordAndAggregate(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := newBackend(t)
	global := []string{AppName, "--target", "token", "--temp-dir", "/shared"}

	prepare := newTestApp(t, fs, "")
	require.NoError(t, prepare.Run(append(global, "prepare")))

	workers := []struct {
		session string
		events  string
	}{
		{
			session: "S1",
			events: `{"hook":"beforeTest","test":{"title":"t1","parent":"A"}}
{"hook":"description","text":"first attempt"}
{"hook":"afterTest","test":{"title":"t1","parent":"A"},"outcome":{"passed":false,"duration":5}}`,
		},
		{
			session: "S2",
			events: `{"hook":"beforeTest","test":{"title":"t1","parent":"A"}}
{"hook":"afterTest","test":{"title":"t1","parent":"A"},"outcome":{"passed":true,"duration":5}}
{"hook":"afterTest","test":{"title":"t2","parent":"A"},"outcome":{"passed":true}}`,
		},
	}
	for _, w := range workers {
		app := newTestApp(t, fs, w.events)
		require.NoError(t, app.Run(append(global, "record", "--session", w.session)))
	}

	list := newTestApp(t, fs, "")
	require.NoError(t, list.Run(append(global, "list")))
	require.Contains(t, list.out.String(), "/shared/S1.json")
	require.Contains(t, list.out.String(), "/shared/S2.json")
	require.NotContains(t, list.out.String(), "README.txt")

	view := newTestApp(t, fs, "")
	require.NoError(t, view.Run(append(global, "view", "S1", "-json")))
	var viewed []model.TestCase
	require.NoError(t, json.Unmarshal(view.out.Bytes(), &viewed))
	require.Len(t, viewed, 1)
	require.Equal(t, "first attempt", viewed[0].Desc)

	agg := newTestApp(t, fs, "")
	agg.newUploader = b.uploader
	require.NoError(t, agg.Run(append(global, "aggregate")))

	require.Len(t, b.payloads, 1)
	cases := b.payloads[0].Results.Cases
	require.Len(t, cases, 2)
	require.Equal(t, "t1", cases[0].Name)
	require.Equal(t, 1, cases[0].RetryCount())
	require.Equal(t, "t2", cases[1].Name)
	require.Equal(t, 0, cases[1].RetryCount())
	require.Contains(t, agg.out.String(), "Test Results (2 artifacts)")
}

func TestApp_AggregateDryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/shared/S1.json", []byte(`[{"suite":"A","name":"t1","end":10,"result":"pass"}]`), 0644))
	require.NoError(t, afero.WriteFile(fs, "/shared/S2.json", []byte(`[{"suite":"A","name":"t1","end":20,"result":"fail"}]`), 0644))

	app := newTestApp(t, fs, "")
	app.newUploader = func(zerolog.Logger, string) upload.Uploader {
		t.Fatal("dry run must not create an upload")
		return nil
	}
	require.NoError(t, app.Run([]string{AppName, "--target", "token", "--temp-dir", "/shared", "--build-name", "ci", "aggregate", "--dry-run"}))

	var payload model.Payload
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &payload))
	require.Equal(t, "token", payload.Target)
	require.Len(t, payload.Results.Cases, 2)
	require.Equal(t, model.ResultFail, payload.Results.Cases[0].Result)
	require.Equal(t, float64(20), *payload.Results.Cases[0].End)
	require.Equal(t, 1, payload.Results.Cases[0].RetryCount())
	require.Equal(t, model.BuildSuite, payload.Results.Cases[1].Suite)
}

func TestApp_AggregateWithoutTarget(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs(), "")
	b := newBackend(t)
	app.newUploader = b.uploader

	require.NoError(t, app.Run([]string{AppName, "--temp-dir", "/shared", "aggregate"}))
	require.Empty(t, b.payloads)
	require.Empty(t, app.out.String())
}

func TestApp_AggregateWritesMetrics(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/shared/S1.json", []byte(`[{"name":"t1","result":"pass"}]`), 0644))
	metricsFile := filepath.Join(t.TempDir(), "caseflow.prom")

	app := newTestApp(t, fs, "")
	app.newUploader = newBackend(t).uploader
	require.NoError(t, app.Run([]string{AppName, "--target", "token", "--temp-dir", "/shared", "aggregate", "--metrics-file", metricsFile}))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `caseflow_upload_total{outcome="success"} 1`)
	require.Contains(t, string(data), `caseflow_cases_total{result="pass"} 1`)
}

func TestApp_Run(t *testing.T) {
	tempDir := t.TempDir()
	b := newBackend(t)

	app := newTestApp(t, afero.NewOsFs(), "")
	app.newUploader = b.uploader

	worker := `printf '[{"suite":"A","name":"t1","end":%s,"result":"pass"}]' "$CASEFLOW_WORKER" > "$CASEFLOW_TEMP_DIR/$CASEFLOW_SESSION_ID.json"`
	require.NoError(t, app.Run([]string{AppName, "--target", "token", "--temp-dir", tempDir, "run", "--parallel", "3", "--", "sh", "-c", worker}))

	require.Len(t, b.payloads, 1)
	cases := b.payloads[0].Results.Cases
	require.Len(t, cases, 1)
	require.Equal(t, 2, cases[0].RetryCount())
	require.Equal(t, float64(2), *cases[0].End)

	_, err := os.Stat(filepath.Join(tempDir, "README.txt"))
	require.NoError(t, err)
}

func TestApp_RunWorkerFailure(t *testing.T) {
	b := newBackend(t)
	app := newTestApp(t, afero.NewOsFs(), "")
	app.newUploader = b.uploader

	err := app.Run([]string{AppName, "--target", "token", "--temp-dir", t.TempDir(), "run", "--", "sh", "-c", "exit 3"})
	require.ErrorContains(t, err, "worker 0 failed with exit code 3")

	// Results are uploaded even when a worker failed.
	require.Len(t, b.payloads, 1)
}

func TestApp_RunWithoutCommand(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs(), "")
	err := app.Run([]string{AppName, "run", "--parallel", "2"})
	require.EqualError(t, err, "no worker command specified: please provide it after --")
}

func TestWorkerEnv(t *testing.T) {
	env := workerEnv(1, "sid", config.Options{Target: "token", TempDir: "/shared"})
	require.Equal(t, []string{
		"CASEFLOW_SESSION_ID=sid",
		"CASEFLOW_TEMP_DIR=/shared",
		"CASEFLOW_WORKER=1",
		"CASEFLOW_TARGET=token",
	}, env)
}

func TestAddGitInfo_KeepsConfiguredFields(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs(), "")
	build := &model.Build{Name: "ci", Custom: map[string]any{fieldGitCommit: "abc123"}}

	app.addGitInfo(build)

	require.Equal(t, "abc123", build.Custom[fieldGitCommit])
}

func TestApp_RecordSeveralSessionsInOneStream(t *testing.T) {
	fs := afero.NewMemMapFs()
	global := []string{AppName, "--target", "token", "--temp-dir", "/shared"}
	events := `{"hook":"afterTest","session":{"id":"s1"},"test":{"title":"t1","parent":"A"},"outcome":{"passed":true}}
{"hook":"afterSession","session":{"id":"s1"}}
{"hook":"afterTest","session":{"id":"s2"},"test":{"title":"t2","parent":"A"},"outcome":{"passed":true}}`

	require.NoError(t, newTestApp(t, fs, events).Run(append(global, "record")))

	app := newTestApp(t, fs, "")
	require.NoError(t, app.Run(append(global, "aggregate", "--dry-run")))

	var payload model.Payload
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &payload))
	require.Len(t, payload.Results.Cases, 2)
	for _, tc := range payload.Results.Cases {
		require.Equal(t, 0, tc.RetryCount(), tc.Name)
	}
}
