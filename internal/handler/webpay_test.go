package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/checkout"
	"github.com/altamontana/booking-api/internal/reconcile"
	"github.com/altamontana/booking-api/internal/webpay"
)

const testOrigin = "https://altamontana.example"

func newWebpayHandler() (*WebpayHandler, *fakeCheckout, *fakeReconciler) {
	co := &fakeCheckout{}
	rec := &fakeReconciler{}
	return NewWebpayHandler(co, rec, testOrigin+"/", zap.NewNop()), co, rec
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	return loc.Scheme + "://" + loc.Host + loc.Path, loc.Query()
}

func TestReturn_PrefersTokenWS(t *testing.T) {
	h, co, _ := newWebpayHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/return?buy_order=ORD1&token_ws=T1&TBK_TOKEN=X", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Return(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusFound, rec.Code)
	target, q := redirectQuery(t, rec)
	assert.Equal(t, testOrigin+"/payment-status", target)
	assert.Equal(t, "T1", q.Get("token_ws"))
	assert.Empty(t, q.Get("TBK_TOKEN"))
	assert.Equal(t, "ORD1", q.Get("buy_order"))
	assert.Empty(t, co.cancels)
	assert.Empty(t, co.commits)
}

func TestReturn_CancelForwardsTBKToken(t *testing.T) {
	h, co, _ := newWebpayHandler()
	e := echo.New()
	form := url.Values{"TBK_TOKEN": {"TB9"}, "TBK_ORDEN_COMPRA": {"ORD2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webpay/return", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Return(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusFound, rec.Code)
	_, q := redirectQuery(t, rec)
	assert.Equal(t, "TB9", q.Get("TBK_TOKEN"))
	assert.Equal(t, "ORD2", q.Get("buy_order"))
	assert.Empty(t, q.Get("token_ws"))
	assert.Equal(t, [][2]string{{"ORD2", "TB9"}}, co.cancels)
	assert.Empty(t, co.commits)
}

func TestReturn_WithoutTokenStillRedirects(t *testing.T) {
	h, co, _ := newWebpayHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/return", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Return(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testOrigin+"/payment-status", rec.Header().Get(echo.HeaderLocation))
	assert.Empty(t, co.cancels)
}

func TestCreate_JSON(t *testing.T) {
	h, co, _ := newWebpayHandler()
	co.initiateRes = checkout.InitiateResult{Token: "T1", URL: "https://provider/pay", BuyOrder: "ORD1"}
	e := echo.New()
	body := `{"experienceId":7,"amount":250000,"customerName":"Ana","customerEmail":"ana@example.com","participants":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/webpay/create", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Create(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"T1","url":"https://provider/pay","buyOrder":"ORD1"}`, rec.Body.String())
	require.Len(t, co.initiated, 1)
	got := co.initiated[0]
	assert.Equal(t, uint64(7), got.ExperienceID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(250000)))
	assert.Equal(t, "Ana", got.Customer.Name)
	assert.Equal(t, 2, got.Customer.Participants)
}

func TestCreate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
		wantKind string
	}{
		{"invalid amount", checkout.ErrInvalidAmount, http.StatusBadRequest, checkout.ErrInvalidAmount.Error(), "invalid_amount"},
		{"rejected", &webpay.ProviderError{Op: "create", Kind: webpay.KindRejected, Status: 401, Body: "Not Authorized"}, http.StatusBadGateway, "Transbank Rejected", "rejected"},
		{"unreachable", &webpay.ProviderError{Op: "create", Kind: webpay.KindUnreachable}, http.StatusGatewayTimeout, "Connection Error", "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, co, _ := newWebpayHandler()
			co.initiateErr = tt.err
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/webpay/create", strings.NewReader(`{"experienceId":1,"amount":0}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			require.NoError(t, h.Create(e.NewContext(req, rec)))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["error"])
			assert.Equal(t, tt.wantKind, body["kind"])
		})
	}
}

func TestCheckout_RendersAutoSubmitForm(t *testing.T) {
	h, co, _ := newWebpayHandler()
	co.initiateRes = checkout.InitiateResult{Token: "T1", URL: "https://provider/pay", BuyOrder: "ORD1"}
	e := echo.New()
	form := url.Values{"experienceId": {"3"}, "amount": {"45000"}, "customerName": {"Ana"}, "customerEmail": {"ana@example.com"}, "participants": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webpay/checkout", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Checkout(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, `action="https://provider/pay"`)
	assert.Contains(t, html, `name="token_ws" value="T1"`)
	require.Len(t, co.initiated, 1)
	assert.Equal(t, uint64(3), co.initiated[0].ExperienceID)
	assert.Equal(t, "ana@example.com", co.initiated[0].Customer.Email)
}

func TestCheckout_BadFormIsRejected(t *testing.T) {
	h, co, _ := newWebpayHandler()
	e := echo.New()
	form := url.Values{"experienceId": {"abc"}, "amount": {"1000"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webpay/checkout", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Checkout(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, co.initiated)
}

func TestCommit_EmptyToken(t *testing.T) {
	h, co, _ := newWebpayHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/commit?token_ws=", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Commit(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"token required"}`, rec.Body.String())
	assert.Empty(t, co.commits)
}

func TestCommit_RelaysRawBody(t *testing.T) {
	h, co, _ := newWebpayHandler()
	raw := `{"buy_order":"ORD1","response_code":0,"amount":250000}`
	co.commitRes = webpay.CommitResult{BuyOrder: "ORD1", Raw: json.RawMessage(raw)}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/commit?token_ws=T1", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Commit(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, raw, rec.Body.String())
	assert.Equal(t, []string{"T1"}, co.commits)
}

func TestCommit_AmbiguousIsConflict(t *testing.T) {
	h, co, _ := newWebpayHandler()
	co.commitErr = &webpay.ProviderError{Op: "commit", Kind: webpay.KindAmbiguous, Status: 422, Body: "Invalid status"}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/commit?token_ws=T1", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Commit(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Commit Failed", body["error"])
	assert.Equal(t, "ambiguous", body["kind"])
	assert.Equal(t, "Invalid status", body["detail"])
}

func TestStatus_PassesParamsAndReturnsOutcome(t *testing.T) {
	h, _, rc := newWebpayHandler()
	code := 0
	rc.out = reconcile.Outcome{State: reconcile.StateConfirmed, Message: "ok", ResponseCode: &code, BuyOrder: "ORD123"}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/webpay/status?token_ws=T1&buy_order=ORD123", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Status(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reconcile.Params{TokenWS: "T1", BuyOrder: "ORD123"}, rc.got)
	var out reconcile.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, reconcile.StateConfirmed, out.State)
	assert.Equal(t, "ORD123", out.BuyOrder)
}
