//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	. "github.com/starquake/quizdocs/cmd/server/app"
	"github.com/starquake/quizdocs/internal/dbtest"
	"github.com/starquake/quizdocs/internal/testutil"
)

func TestServer_Integration(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.SignalCtx(t)

	dbURI, cleanup := dbtest.SetupTestDB(t)
	defer cleanup()

	getenv := func(key string) string {
		env := map[string]string{
			"HOST":   "localhost",
			"PORT":   "0",
			"DB_URI": dbURI,
		}

		return env[key]
	}

	baseURL, stop := testutil.StartServer(ctx, t, func(ctx context.Context, ln net.Listener) error {
		return Run(ctx, getenv, testutil.NewLogWriter(t), ln)
	})

	call := func(method, path, body string, wantStatus int, out any) {
		t.Helper()

		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, baseURL+path, r)
		if err != nil {
			t.Fatalf("error creating request: %v", err)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer func() { _ = res.Body.Close() }()

		if res.StatusCode != wantStatus {
			t.Fatalf("%s %s: status = %d, want %d", method, path, res.StatusCode, wantStatus)
		}
		if out != nil {
			if err = json.NewDecoder(res.Body).Decode(out); err != nil {
				t.Fatalf("%s %s: error decoding body: %v", method, path, err)
			}
		}
	}

	var qz struct {
		ID        string            `json:"id"`
		Questions []json.RawMessage `json:"questions"`
	}
	call(http.MethodPost, "/quizzes", `{"title":"Geo","description":"d"}`, http.StatusCreated, &qz)
	if qz.Questions == nil || len(qz.Questions) != 0 {
		t.Fatalf("new quiz questions = %v, want []", qz.Questions)
	}

	var q struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	call(http.MethodPost, fmt.Sprintf("/quizzes/%s/question", qz.ID),
		`{"text":"What is the capital of France?"}`, http.StatusCreated, &q)

	var populated []struct {
		ID string `json:"id"`
	}
	call(http.MethodGet, fmt.Sprintf("/quizzes/%s/populate", qz.ID), "", http.StatusOK, &populated)
	if len(populated) != 1 || populated[0].ID != q.ID {
		t.Fatalf("populate = %v, want only %s", populated, q.ID)
	}

	call(http.MethodDelete, fmt.Sprintf("/quizzes/%s/question/%s", qz.ID, q.ID), "", http.StatusOK, nil)

	call(http.MethodGet, "/quizzes/"+qz.ID, "", http.StatusOK, &qz)
	if len(qz.Questions) != 0 {
		t.Errorf("questions after delete = %v, want []", qz.Questions)
	}

	if err := stop(); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("server exited with error: %v", err)
	}
}
