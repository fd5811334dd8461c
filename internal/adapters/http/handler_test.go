package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gigforge/escrow-engine/internal/adapters/events"
	httpadapter "github.com/gigforge/escrow-engine/internal/adapters/http"
	"github.com/gigforge/escrow-engine/internal/adapters/memory"
	"github.com/gigforge/escrow-engine/internal/adapters/settlement"
	"github.com/gigforge/escrow-engine/internal/application"
	"github.com/gigforge/escrow-engine/internal/contracts"
)

func newServer() (http.Handler, *settlement.MemoryRail) {
	repos := memory.NewRepositories()
	rail := settlement.NewMemoryRail()
	svc := application.NewService(application.Dependencies{
		Jobs:         repos.Jobs,
		Withdrawals:  repos.Withdrawals,
		Idempotency:  repos.Idempotency,
		Outbox:       repos.Outbox,
		Settlement:   rail,
		DomainEvents: events.NewMemoryDomainPublisher(),
		Analytics:    events.NewMemoryAnalyticsPublisher(),
		DLQ:          events.NewLoggingDLQPublisher(),
	})
	return httpadapter.NewRouter(httpadapter.NewHandler(svc)), rail
}

func doJSON(t *testing.T, handler http.Handler, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+subject)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder, data any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if envelope.Status != "success" {
		t.Fatalf("status = %s, body %s", envelope.Status, rec.Body.String())
	}
	if data != nil {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func TestRouterRejectsMissingBearer(t *testing.T) {
	handler, _ := newServer()
	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs", "", contracts.CreateJobRequest{FreelancerID: "dev-1", MilestoneAmounts: []int64{100}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := newServer()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	handler, rail := newServer()

	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs", "client-1", contracts.CreateJobRequest{
		FreelancerID:     "dev-1",
		ArbiterID:        "arb-1",
		MilestoneAmounts: []int64{100, 200},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var job contracts.JobResponse
	decodeSuccess(t, rec, &job)
	if job.JobID != 1 || job.State != "created" || job.TotalAmount != 300 {
		t.Fatalf("created job = %+v", job)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/fund", "dev-1", contracts.FundJobRequest{Amount: 300})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("freelancer funding status = %d, want 403", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/fund", "client-1", contracts.FundJobRequest{Amount: 299})
	if rec.Code != http.StatusPaymentRequired || errorCode(t, rec) != "insufficient_funds" {
		t.Fatalf("short funding status = %d code %s", rec.Code, errorCode(t, rec))
	}
	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/fund", "client-1", contracts.FundJobRequest{Amount: 300})
	if rec.Code != http.StatusOK {
		t.Fatalf("funding status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/milestones/submit", "dev-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/milestones/accept", "client-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/jobs/1/milestones/0", "client-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get milestone status = %d", rec.Code)
	}
	var milestone contracts.MilestoneResponse
	decodeSuccess(t, rec, &milestone)
	if milestone.State != "accepted" || milestone.Amount != 100 {
		t.Fatalf("milestone = %+v", milestone)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/wallet/balance", "dev-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rec.Code)
	}
	var balance contracts.BalanceResponse
	decodeSuccess(t, rec, &balance)
	if balance.Owed != 100 {
		t.Fatalf("owed = %d, want 100", balance.Owed)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/withdrawals", "dev-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw status = %d, body %s", rec.Code, rec.Body.String())
	}
	var withdrawal contracts.WithdrawalResponse
	decodeSuccess(t, rec, &withdrawal)
	if withdrawal.Amount != 100 || withdrawal.Identity != "dev-1" {
		t.Fatalf("withdrawal = %+v", withdrawal)
	}
	if transfers := rail.Transfers(); len(transfers) != 1 || transfers[0].Amount != 100 {
		t.Fatalf("rail transfers = %+v", transfers)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/withdrawals", "dev-1", nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "nothing_owed" {
		t.Fatalf("empty withdrawal status = %d code %s", rec.Code, errorCode(t, rec))
	}
}

func TestDisputeFlowOverHTTP(t *testing.T) {
	handler, _ := newServer()

	doJSON(t, handler, http.MethodPost, "/v1/jobs", "client-1", contracts.CreateJobRequest{FreelancerID: "dev-1", ArbiterID: "arb-1", MilestoneAmounts: []int64{101}})
	doJSON(t, handler, http.MethodPost, "/v1/jobs/1/fund", "client-1", contracts.FundJobRequest{Amount: 101})
	doJSON(t, handler, http.MethodPost, "/v1/jobs/1/milestones/submit", "dev-1", nil)

	rec := doJSON(t, handler, http.MethodPost, "/v1/jobs/1/disputes", "client-1", contracts.RaiseDisputeRequest{Reason: "deliverable rejected"})
	if rec.Code != http.StatusOK {
		t.Fatalf("raise dispute status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/disputes/resolve", "client-1", contracts.ResolveDisputeRequest{Outcome: "split"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-arbiter resolve status = %d, want 403", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/v1/jobs/1/disputes/resolve", "arb-1", contracts.ResolveDisputeRequest{Outcome: "split"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", rec.Code, rec.Body.String())
	}

	var devBalance contracts.BalanceResponse
	decodeSuccess(t, doJSON(t, handler, http.MethodGet, "/v1/wallet/balance", "dev-1", nil), &devBalance)
	if devBalance.Owed != 50 {
		t.Fatalf("freelancer owed = %d, want 50", devBalance.Owed)
	}
	var clientBalance contracts.BalanceResponse
	decodeSuccess(t, doJSON(t, handler, http.MethodGet, "/v1/wallet/balance", "client-1", nil), &clientBalance)
	if clientBalance.Owed != 51 {
		t.Fatalf("client owed = %d, want 51", clientBalance.Owed)
	}
}

func TestJobIDValidation(t *testing.T) {
	handler, _ := newServer()
	rec := doJSON(t, handler, http.MethodGet, "/v1/jobs/abc", "client-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/jobs/7", "client-1", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("missing job status = %d code %s", rec.Code, errorCode(t, rec))
	}
}
