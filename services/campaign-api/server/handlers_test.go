package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/CampaignDispatch/internal/campaign"
	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeDispatcher struct {
	notReady error
	err      error
	res      dispatch.Result
	got      []dispatch.Request
	deadline bool
}

func (f *fakeDispatcher) Ready() error { return f.notReady }

func (f *fakeDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	f.got = append(f.got, req)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return dispatch.Result{}, f.err
	}
	return f.res, nil
}

type fakePublisher struct {
	ids    []string
	bodies [][]byte
	err    error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, messageID string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, messageID)
	p.bodies = append(p.bodies, body)
	return nil
}

type errTest string

func (e errTest) Error() string { return string(e) }

const validBody = `{
	"campaignId":"c1",
	"subject":"Sale",
	"htmlContent":"<p>Hi</p>",
	"recipients":[{"email":"a@x.com"},{"email":"bad"},{"email":"c@x.com"}],
	"trackOpens":true
}`

func do(h *Handlers, method, path, body string) *httptest.ResponseRecorder {
	srv := NewHTTPServer(":0", h)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestDispatch_OK(t *testing.T) {
	fd := &fakeDispatcher{res: dispatch.Result{
		Sent:       2,
		Failed:     1,
		Errors:     []dispatch.RecipientError{{Email: "bad", Error: "invalid recipient address"}},
		MessageIDs: []dispatch.MessageID{{Email: "a@x.com", MessageID: "m1"}, {Email: "c@x.com", MessageID: "m2"}},
	}}
	h := &Handlers{Dispatcher: fd, Timeout: time.Minute}

	rr := do(h, http.MethodPost, "/campaigns/dispatch", validBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	var resp campaign.DispatchResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Sent != 2 || resp.Failed != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.MessageIDs) != 2 || resp.MessageIDs[0].Email != "a@x.com" || resp.MessageIDs[1].Email != "c@x.com" {
		t.Fatalf("unexpected message ids: %+v", resp.MessageIDs)
	}
	if len(fd.got) != 1 || fd.got[0].CampaignID != "c1" || len(fd.got[0].Recipients) != 3 {
		t.Fatalf("request not passed through: %+v", fd.got)
	}
	if !fd.deadline {
		t.Fatal("dispatch ran without the configured deadline")
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
}

func TestDispatch_WrappedPayload(t *testing.T) {
	fd := &fakeDispatcher{}
	h := &Handlers{Dispatcher: fd}

	raw, _ := json.Marshal(validBody)
	rr := do(h, http.MethodPost, "/campaigns/dispatch", `{"data":`+string(raw)+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	if len(fd.got) != 1 || fd.got[0].Subject != "Sale" {
		t.Fatalf("wrapped payload not unwrapped: %+v", fd.got)
	}
}

func TestDispatch_ValidationError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"not json", `nope`},
		{"no recipients", `{"subject":"S","textContent":"x","recipients":[]}`},
		{"no content", `{"subject":"S","recipients":["a@x.com"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd := &fakeDispatcher{}
			rr := do(&Handlers{Dispatcher: fd}, http.MethodPost, "/campaigns/dispatch", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var resp campaign.ErrorResp
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error == "" {
				t.Fatalf("unexpected error body: %+v", resp)
			}
			if len(fd.got) != 0 {
				t.Fatal("dispatcher called for invalid request")
			}
		})
	}
}

func TestDispatch_NotConfigured(t *testing.T) {
	fd := &fakeDispatcher{notReady: dispatch.ErrConfiguration}
	rr := do(&Handlers{Dispatcher: fd}, http.MethodPost, "/campaigns/dispatch", validBody)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if len(fd.got) != 0 {
		t.Fatal("dispatcher called while unconfigured")
	}
}

func TestDispatch_UnexpectedError(t *testing.T) {
	fd := &fakeDispatcher{err: errTest("boom")}
	rr := do(&Handlers{Dispatcher: fd}, http.MethodPost, "/campaigns/dispatch", validBody)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestDispatchAsync_Queued(t *testing.T) {
	fd := &fakeDispatcher{}
	fp := &fakePublisher{}
	h := &Handlers{Dispatcher: fd, Pub: fp}

	rr := do(h, http.MethodPost, "/campaigns/dispatch/async", validBody)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	var resp campaign.QueuedResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || !resp.Queued || resp.Recipients != 3 || resp.JobID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(fp.ids) != 1 || fp.ids[0] != resp.JobID {
		t.Fatalf("job not published under its id: %v", fp.ids)
	}

	var job campaign.JobMessage
	if err := json.Unmarshal(fp.bodies[0], &job); err != nil {
		t.Fatal(err)
	}
	if job.JobID != resp.JobID || job.Request.CampaignID != "c1" || len(job.Request.Recipients) != 3 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(fd.got) != 0 {
		t.Fatal("async endpoint dispatched inline")
	}
}

func TestDispatchAsync_NoQueue(t *testing.T) {
	rr := do(&Handlers{Dispatcher: &fakeDispatcher{}}, http.MethodPost, "/campaigns/dispatch/async", validBody)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestDispatchAsync_NotConfigured(t *testing.T) {
	fp := &fakePublisher{}
	h := &Handlers{Dispatcher: &fakeDispatcher{notReady: dispatch.ErrConfiguration}, Pub: fp}

	rr := do(h, http.MethodPost, "/campaigns/dispatch/async", validBody)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if len(fp.ids) != 0 {
		t.Fatal("job published while unconfigured")
	}
}

func TestDispatchAsync_Invalid(t *testing.T) {
	fp := &fakePublisher{}
	rr := do(&Handlers{Dispatcher: &fakeDispatcher{}, Pub: fp}, http.MethodPost, "/campaigns/dispatch/async", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(fp.ids) != 0 {
		t.Fatal("invalid job published")
	}
}

func TestDispatchAsync_PublishError(t *testing.T) {
	fp := &fakePublisher{err: errTest("channel closed")}
	rr := do(&Handlers{Dispatcher: &fakeDispatcher{}, Pub: fp}, http.MethodPost, "/campaigns/dispatch/async", validBody)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	rr := do(&Handlers{Dispatcher: &fakeDispatcher{}}, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := NewHTTPServer(":0", &Handlers{Dispatcher: &fakeDispatcher{}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "rid-123")

	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "rid-123" {
		t.Fatalf("want request id echoed, got %q", got)
	}
}

func TestDocsEndpoints(t *testing.T) {
	h := &Handlers{Dispatcher: &fakeDispatcher{}}

	t.Run("html", func(t *testing.T) {
		rr := do(h, http.MethodGet, "/docs", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "SwaggerUIBundle") {
			t.Fatalf("swagger bundle not rendered: %s", rr.Body.String())
		}
	})

	t.Run("openapi", func(t *testing.T) {
		rr := do(h, http.MethodGet, "/docs/campaign-api/openapi.yaml", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "yaml") {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if !strings.Contains(rr.Body.String(), "openapi: 3.0.3") {
			t.Fatalf("unexpected body: %s", rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "Only applied when campaignId is set") {
			t.Fatal("click tracking precondition not documented")
		}
	})
}
