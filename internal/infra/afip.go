package infra

// afip.go — client for the AFIP electronic invoicing services.
// Two upstream services are involved:
//   - WSAA: authentication. A signed TRA (access ticket request) is exchanged
//     for a token+sign pair valid for ~24h. The pair is cached on the client
//     and reused until it expires.
//   - WSFEV1: voucher operations. FECompUltimoAutorizado returns the last
//     authorized voucher number per (point of sale, voucher type);
//     FECAESolicitar submits a voucher and returns its CAE.
//
// Wire fixed points: dates travel as AAAAMMDD strings, money as numbers with
// exactly two decimals, currency is PES with exchange rate 1. AFIP rejects
// submissions that deviate from this formatting.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"facturador/internal/apperrors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	ticketLifetime = 24 * time.Hour
	// conceptProducts: the business only invoices goods
	conceptProducts = 1
)

// Voucher type wire codes per AFIP table. The letter is the legal category
// stored on the invoice; the code is what travels on the wire.
var (
	voucherCodes    = map[string]int{"A": 1, "B": 6, "C": 11}
	creditNoteCodes = map[string]int{"A": 3, "B": 8, "C": 13}
)

// VoucherTypeCode maps a legal category letter to its AFIP voucher code.
func VoucherTypeCode(voucherType string) (int, bool) {
	c, ok := voucherCodes[voucherType]
	return c, ok
}

// CreditNoteTypeCode maps a legal category letter to the AFIP code of the
// credit note that voids it.
func CreditNoteTypeCode(voucherType string) (int, bool) {
	c, ok := creditNoteCodes[voucherType]
	return c, ok
}

// FormatDate renders a date in the compact AAAAMMDD form AFIP expects.
func FormatDate(t time.Time) string { return t.Format("20060102") }

// ParseDate parses an AAAAMMDD date.
func ParseDate(s string) (time.Time, error) { return time.Parse("20060102", s) }

// amount renders a monetary value with exactly two decimals, unquoted.
func amount(d decimal.Decimal) json.Number { return json.Number(d.StringFixed(2)) }

// TicketSigner produces the CMS envelope for a TRA. The real scheme
// (X.509 certificate + PKCS#7 signature over the TRA XML) is specified by
// AFIP; implementations plug in behind this interface.
type TicketSigner interface {
	SignTRA(tra []byte) (string, error)
}

// FileSigner loads the certificate and private key from disk.
//
// TODO: replace the placeholder envelope with real PKCS#7 signing once the
// production certificate is provisioned (tracked as the wsaa-signing task).
type FileSigner struct {
	CertPath string
	KeyPath  string
}

func NewFileSigner(certPath, keyPath string) *FileSigner {
	return &FileSigner{CertPath: certPath, KeyPath: keyPath}
}

func (s *FileSigner) SignTRA(tra []byte) (string, error) {
	if _, err := os.Stat(s.CertPath); err != nil {
		return "", fmt.Errorf("afip: certificate not readable: %w", err)
	}
	if _, err := os.Stat(s.KeyPath); err != nil {
		return "", fmt.Errorf("afip: private key not readable: %w", err)
	}
	return "signed_tra_content", nil
}

// authTicket is the cached WSAA credential. It is replaced wholesale on
// refresh; concurrent callers racing past an expiry may each perform a
// refresh, which WSAA treats as idempotent.
type authTicket struct {
	Token     string
	Sign      string
	ExpiresAt time.Time
}

// AFIPClient talks to WSAA and WSFEV1 over HTTP. The breaker wraps every
// exchange so a downed authority fails fast instead of piling up timeouts.
type AFIPClient struct {
	wsaaURL    string
	wsfeURL    string
	cuit       string
	signer     TicketSigner
	breaker    *CircuitBreaker
	httpClient *http.Client

	ticket atomic.Pointer[authTicket]
	now    func() time.Time
}

func NewAFIPClient(wsaaURL, wsfeURL, cuit string, signer TicketSigner, breaker *CircuitBreaker) *AFIPClient {
	return &AFIPClient{
		wsaaURL:    wsaaURL,
		wsfeURL:    wsfeURL,
		cuit:       cuit,
		signer:     signer,
		breaker:    breaker,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// ── WSAA ─────────────────────────────────────────────────────────────────────

type loginRequest struct {
	LoginCms struct {
		In0 string `json:"in0"`
	} `json:"loginCms"`
}

type loginResponse struct {
	Token          string `json:"token"`
	Sign           string `json:"sign"`
	ExpirationTime string `json:"expirationTime"` // RFC 3339
}

// buildTRA renders the access ticket request XML for the wsfe service.
func (c *AFIPClient) buildTRA() []byte {
	now := c.now()
	expires := now.Add(ticketLifetime)
	tra := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<loginTicketRequest version="1.0">
  <header>
    <uniqueId>%d</uniqueId>
    <generationTime>%s</generationTime>
    <expirationTime>%s</expirationTime>
  </header>
  <service>wsfe</service>
</loginTicketRequest>`, now.Unix(), now.Format(time.RFC3339), expires.Format(time.RFC3339))
	return []byte(tra)
}

// ensureTicket refreshes the cached credential when absent or expired.
// Intentionally unlocked: a redundant refresh is cheaper than serializing
// every authority call behind a mutex.
func (c *AFIPClient) ensureTicket(ctx context.Context) error {
	if t := c.ticket.Load(); t != nil && c.now().Before(t.ExpiresAt) {
		return nil
	}

	cms, err := c.signer.SignTRA(c.buildTRA())
	if err != nil {
		return apperrors.AuthorityUnreachable(err)
	}

	var req loginRequest
	req.LoginCms.In0 = cms

	var resp loginResponse
	if err := c.post(ctx, c.wsaaURL, req, &resp); err != nil {
		return err
	}
	if resp.Token == "" || resp.Sign == "" {
		return apperrors.AuthorityRejected("wsaa returned an empty credential")
	}

	expires, err := time.Parse(time.RFC3339, resp.ExpirationTime)
	if err != nil {
		// Ticket is usable even if the expiry is unparsable; assume the
		// contractual lifetime so it still rotates.
		expires = c.now().Add(ticketLifetime)
	}

	c.ticket.Store(&authTicket{Token: resp.Token, Sign: resp.Sign, ExpiresAt: expires})
	log.Info().Time("expires_at", expires).Msg("afip: auth ticket refreshed")
	return nil
}

type wireAuth struct {
	Token string `json:"Token"`
	Sign  string `json:"Sign"`
	Cuit  string `json:"Cuit"`
}

func (c *AFIPClient) auth() wireAuth {
	t := c.ticket.Load()
	if t == nil {
		return wireAuth{Cuit: c.cuit}
	}
	return wireAuth{Token: t.Token, Sign: t.Sign, Cuit: c.cuit}
}

// ── WSFEV1: last authorized voucher ──────────────────────────────────────────

type lastVoucherRequest struct {
	FECompUltimoAutorizado struct {
		Auth     wireAuth `json:"Auth"`
		PtoVta   int      `json:"PtoVta"`
		CbteTipo int      `json:"CbteTipo"`
	} `json:"FECompUltimoAutorizado"`
}

type lastVoucherResponse struct {
	FECompUltimoAutorizadoResult struct {
		CbteNro int64       `json:"CbteNro"`
		Errors  []wireError `json:"Errors"`
	} `json:"FECompUltimoAutorizadoResult"`
}

type wireError struct {
	Code    int    `json:"Code"`
	Message string `json:"Msg"`
}

// LastVoucherNumber queries the last authorized voucher number for a
// (point of sale, voucher type code) pair. Returns 0 when none was issued yet.
func (c *AFIPClient) LastVoucherNumber(ctx context.Context, pointOfSale, voucherTypeCode int) (int64, error) {
	if err := c.ensureTicket(ctx); err != nil {
		return 0, err
	}

	var req lastVoucherRequest
	req.FECompUltimoAutorizado.Auth = c.auth()
	req.FECompUltimoAutorizado.PtoVta = pointOfSale
	req.FECompUltimoAutorizado.CbteTipo = voucherTypeCode

	var resp lastVoucherResponse
	if err := c.post(ctx, c.wsfeURL, req, &resp); err != nil {
		return 0, err
	}
	if errs := resp.FECompUltimoAutorizadoResult.Errors; len(errs) > 0 {
		return 0, apperrors.AuthorityRejected(joinWireErrors(errs))
	}
	return resp.FECompUltimoAutorizadoResult.CbteNro, nil
}

// ── WSFEV1: request authorization (CAE) ──────────────────────────────────────

// RelatedVoucher references the original document a credit note voids.
type RelatedVoucher struct {
	TypeCode    int   `json:"Tipo"`
	PointOfSale int   `json:"PtoVta"`
	Number      int64 `json:"Nro"`
}

// AuthorizationRequest carries everything FECAESolicitar needs for one voucher.
type AuthorizationRequest struct {
	PointOfSale     int
	VoucherTypeCode int
	BuyerDocType    int // AFIP document type code (80=CUIT, 96=DNI, 99=final consumer)
	BuyerDocNumber  string
	VoucherNumber   int64
	Date            time.Time
	Net             decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Related         []RelatedVoucher
}

// AuthorizationResult is the parsed outcome of an approved submission.
// Raw preserves the authority's response verbatim for the audit trail.
type AuthorizationResult struct {
	CAE           string
	CAEExpiresAt  time.Time
	VoucherNumber int64
	Raw           json.RawMessage
}

type caeRequest struct {
	FECAESolicitar struct {
		Auth     wireAuth  `json:"Auth"`
		FeCAEReq caeDetail `json:"FeCAEReq"`
	} `json:"FECAESolicitar"`
}

type caeDetail struct {
	FeCabReq struct {
		CantReg  int `json:"CantReg"`
		PtoVta   int `json:"PtoVta"`
		CbteTipo int `json:"CbteTipo"`
	} `json:"FeCabReq"`
	FeDetReq struct {
		FECAEDetRequest caeDetailRow `json:"FECAEDetRequest"`
	} `json:"FeDetReq"`
}

type caeDetailRow struct {
	Concepto   int              `json:"Concepto"`
	DocTipo    int              `json:"DocTipo"`
	DocNro     string           `json:"DocNro"`
	CbteDesde  int64            `json:"CbteDesde"`
	CbteHasta  int64            `json:"CbteHasta"`
	CbteFch    string           `json:"CbteFch"`
	ImpTotal   json.Number      `json:"ImpTotal"`
	ImpTotConc json.Number      `json:"ImpTotConc"`
	ImpNeto    json.Number      `json:"ImpNeto"`
	ImpOpEx    json.Number      `json:"ImpOpEx"`
	ImpIVA     json.Number      `json:"ImpIVA"`
	MonID      string           `json:"MonId"`
	MonCotiz   int              `json:"MonCotiz"`
	CbtesAsoc  []RelatedVoucher `json:"CbtesAsoc,omitempty"`
}

type caeResponse struct {
	FECAESolicitarResult struct {
		FeDetResp []struct {
			Resultado string `json:"Resultado"` // "A" approved | "R" rejected
			CAE       string `json:"CAE"`
			CAEFchVto string `json:"CAEFchVto"`
			CbteDesde int64  `json:"CbteDesde"`
			Observaciones []struct {
				Code    int    `json:"Code"`
				Message string `json:"Msg"`
			} `json:"Observaciones"`
		} `json:"FeDetResp"`
		Errors []wireError `json:"Errors"`
	} `json:"FECAESolicitarResult"`
}

// RequestAuthorization submits one voucher for fiscal authorization and
// parses the response into a single typed result. An explicit decline
// (result "R" or a service-level error list) surfaces as ErrAuthorityRejected
// carrying the authority's reason; transport failures as ErrAuthorityUnreachable.
func (c *AFIPClient) RequestAuthorization(ctx context.Context, ar AuthorizationRequest) (*AuthorizationResult, error) {
	if err := c.ensureTicket(ctx); err != nil {
		return nil, err
	}

	var req caeRequest
	req.FECAESolicitar.Auth = c.auth()
	req.FECAESolicitar.FeCAEReq.FeCabReq.CantReg = 1
	req.FECAESolicitar.FeCAEReq.FeCabReq.PtoVta = ar.PointOfSale
	req.FECAESolicitar.FeCAEReq.FeCabReq.CbteTipo = ar.VoucherTypeCode
	req.FECAESolicitar.FeCAEReq.FeDetReq.FECAEDetRequest = caeDetailRow{
		Concepto:   conceptProducts,
		DocTipo:    ar.BuyerDocType,
		DocNro:     ar.BuyerDocNumber,
		CbteDesde:  ar.VoucherNumber,
		CbteHasta:  ar.VoucherNumber,
		CbteFch:    FormatDate(ar.Date),
		ImpTotal:   amount(ar.Total),
		ImpTotConc: amount(decimal.Zero),
		ImpNeto:    amount(ar.Net),
		ImpOpEx:    amount(decimal.Zero),
		ImpIVA:     amount(ar.Tax),
		MonID:      "PES",
		MonCotiz:   1,
		CbtesAsoc:  ar.Related,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("afip: marshal request: %w", err)
	}

	raw, err := c.exchange(ctx, c.wsfeURL, body)
	if err != nil {
		return nil, err
	}

	var resp caeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperrors.AuthorityUnreachable(fmt.Errorf("decode response: %w", err))
	}
	if errs := resp.FECAESolicitarResult.Errors; len(errs) > 0 {
		return nil, apperrors.AuthorityRejected(joinWireErrors(errs))
	}
	if len(resp.FECAESolicitarResult.FeDetResp) == 0 {
		return nil, apperrors.AuthorityUnreachable(fmt.Errorf("empty detail response"))
	}

	det := resp.FECAESolicitarResult.FeDetResp[0]
	if det.Resultado != "A" {
		reason := "result=" + det.Resultado
		for _, obs := range det.Observaciones {
			reason += fmt.Sprintf("; [%d] %s", obs.Code, obs.Message)
		}
		return nil, apperrors.AuthorityRejected(reason)
	}

	expiry, err := ParseDate(det.CAEFchVto)
	if err != nil {
		return nil, apperrors.AuthorityUnreachable(fmt.Errorf("bad CAE expiry %q: %w", det.CAEFchVto, err))
	}

	return &AuthorizationResult{
		CAE:           det.CAE,
		CAEExpiresAt:  expiry,
		VoucherNumber: det.CbteDesde,
		Raw:           raw,
	}, nil
}

// ── transport ────────────────────────────────────────────────────────────────

func (c *AFIPClient) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("afip: marshal request: %w", err)
	}
	raw, err := c.exchange(ctx, url, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.AuthorityUnreachable(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// exchange performs one HTTP round trip through the circuit breaker.
// Non-2xx statuses and transport errors count as unreachable.
func (c *AFIPClient) exchange(ctx context.Context, url string, body []byte) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return err
		}
		raw = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, apperrors.AuthorityUnreachable(err)
	}
	return raw, nil
}

func joinWireErrors(errs []wireError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return msg
}
