package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/checkout"
	"github.com/altamontana/booking-api/internal/reconcile"
	"github.com/altamontana/booking-api/internal/webpay"
)

// providerTimeout bounds a handler that waits on the payment provider.  The
// client timeout is shorter; this leaves room for the database writes.
const providerTimeout = 30 * time.Second

// Checkout is the payment workflow the endpoints drive.
type Checkout interface {
	Initiate(ctx context.Context, req checkout.InitiateRequest) (checkout.InitiateResult, error)
	Commit(ctx context.Context, token string) (webpay.CommitResult, error)
	Cancel(ctx context.Context, buyOrder, token string)
}

// Reconciler turns returned provider parameters into a status page outcome.
type Reconciler interface {
	Reconcile(ctx context.Context, p reconcile.Params) reconcile.Outcome
}

// WebpayHandler exposes the payment flow: opening a transaction, handing the
// browser to the provider, receiving it back and resolving the outcome.
type WebpayHandler struct {
	Service      Checkout
	Reconciler   Reconciler
	ClientOrigin string
	Logger       *zap.Logger
}

func NewWebpayHandler(co Checkout, rec Reconciler, clientOrigin string, logger *zap.Logger) *WebpayHandler {
	return &WebpayHandler{
		Service:      co,
		Reconciler:   rec,
		ClientOrigin: strings.TrimRight(clientOrigin, "/"),
		Logger:       logger,
	}
}

// ----- DTOs -----

type createTransactionReq struct {
	ExperienceID  uint64          `json:"experienceId" form:"experienceId"`
	Amount        decimal.Decimal `json:"amount" form:"amount"`
	CustomerName  string          `json:"customerName" form:"customerName"`
	CustomerEmail string          `json:"customerEmail" form:"customerEmail"`
	Participants  int             `json:"participants" form:"participants"`
}

func (r createTransactionReq) initiate() checkout.InitiateRequest {
	return checkout.InitiateRequest{
		ExperienceID: r.ExperienceID,
		Amount:       r.Amount,
		Customer: &checkout.Customer{
			Name:         r.CustomerName,
			Email:        r.CustomerEmail,
			Participants: r.Participants,
		},
	}
}

// bindCreate accepts JSON or a form post.  Form amounts arrive as text, so
// they are parsed here rather than by the binder.
func bindCreate(c echo.Context) (createTransactionReq, error) {
	var req createTransactionReq
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		err := c.Bind(&req)
		return req, err
	}
	id, ok := parseUintValue(c.FormValue("experienceId"))
	if !ok {
		return req, errors.New("invalid experienceId")
	}
	req.ExperienceID = id
	if raw := strings.TrimSpace(c.FormValue("amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return req, err
		}
		req.Amount = amount
	}
	req.CustomerName = c.FormValue("customerName")
	req.CustomerEmail = c.FormValue("customerEmail")
	if n, ok := parseUintValue(c.FormValue("participants")); ok {
		req.Participants = int(n)
	}
	return req, nil
}

// Create POST /api/webpay/create returns {token, url, buyOrder} for clients
// that post token_ws to the provider themselves.
func (h *WebpayHandler) Create(c echo.Context) error {
	req, err := bindCreate(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), providerTimeout)
	defer cancel()

	res, err := h.Service.Initiate(ctx, req.initiate())
	if err != nil {
		return h.initiateError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

var handoffPage = template.Must(template.New("handoff").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Redirigiendo a Webpay</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.URL}}">
<input type="hidden" name="token_ws" value="{{.Token}}">
<noscript><button type="submit">Continuar al pago</button></noscript>
</form>
</body>
</html>
`))

// Checkout POST /api/webpay/checkout opens a transaction and answers with a
// page that immediately form-posts token_ws to the provider.
func (h *WebpayHandler) Checkout(c echo.Context) error {
	req, err := bindCreate(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), providerTimeout)
	defer cancel()

	res, err := h.Service.Initiate(ctx, req.initiate())
	if err != nil {
		return h.initiateError(c, err)
	}

	var buf bytes.Buffer
	if err := handoffPage.Execute(&buf, res); err != nil {
		h.Logger.Error("render handoff page", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render failed"})
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Return GET|POST /api/webpay/return is where the provider sends the
// browser back.  It never fails: every combination of parameters ends in a
// redirect to the status page, which does the classification.
func (h *WebpayHandler) Return(c echo.Context) error {
	tokenWS := strings.TrimSpace(c.FormValue("token_ws"))
	tbkToken := strings.TrimSpace(c.FormValue("TBK_TOKEN"))
	buyOrder := strings.TrimSpace(c.QueryParam("buy_order"))
	if buyOrder == "" {
		buyOrder = strings.TrimSpace(c.FormValue("TBK_ORDEN_COMPRA"))
	}

	q := url.Values{}
	switch {
	case tokenWS != "":
		q.Set("token_ws", tokenWS)
	case tbkToken != "":
		q.Set("TBK_TOKEN", tbkToken)
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		h.Service.Cancel(ctx, buyOrder, tbkToken)
		cancel()
	default:
		h.Logger.Warn("provider return without token", zap.String("buy_order", buyOrder))
	}
	if buyOrder != "" {
		q.Set("buy_order", buyOrder)
	}

	target := h.ClientOrigin + "/payment-status"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return c.Redirect(http.StatusFound, target)
}

// Commit GET /api/webpay/commit?token_ws= commits the transaction and relays
// the provider's answer.  A repeated call returns the stored result.
func (h *WebpayHandler) Commit(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token_ws"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	// The commit outlives a disconnected browser so its result is stored.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), providerTimeout)
	defer cancel()

	res, err := h.Service.Commit(ctx, token)
	if err != nil {
		if errors.Is(err, checkout.ErrTokenRequired) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
		}
		body := echo.Map{"error": "Commit Failed", "detail": err.Error()}
		return c.JSON(providerStatus(err, body), body)
	}
	if len(res.Raw) > 0 {
		return c.JSONBlob(http.StatusOK, res.Raw)
	}
	return c.JSON(http.StatusOK, res)
}

// Status GET /api/webpay/status resolves the provider parameters into the
// terminal state shown by the payment status page.
func (h *WebpayHandler) Status(c echo.Context) error {
	p := reconcile.Params{
		TokenWS:  c.QueryParam("token_ws"),
		TBKToken: c.QueryParam("TBK_TOKEN"),
		BuyOrder: c.QueryParam("buy_order"),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), providerTimeout)
	defer cancel()

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, h.Reconciler.Reconcile(ctx, p))
}

func (h *WebpayHandler) initiateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, checkout.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "kind": "invalid_amount"})
	case errors.Is(err, checkout.ErrExperienceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	var pe *webpay.ProviderError
	if !errors.As(err, &pe) {
		h.Logger.Error("initiate checkout", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	body := echo.Map{}
	if pe.Kind == webpay.KindUnreachable {
		body["error"] = "Connection Error"
	} else {
		body["error"] = "Transbank Rejected"
	}
	return c.JSON(providerStatus(err, body), body)
}

// providerStatus maps a provider error kind onto an HTTP status and fills
// the diagnostic fields of body.
func providerStatus(err error, body echo.Map) int {
	var pe *webpay.ProviderError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	body["kind"] = pe.Kind.String()
	if pe.Status != 0 {
		body["status"] = pe.Status
	}
	if pe.Body != "" {
		body["detail"] = pe.Body
	}
	switch pe.Kind {
	case webpay.KindUnreachable:
		return http.StatusGatewayTimeout
	case webpay.KindAmbiguous:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}
