package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/pricing"
	"github.com/noah-isme/toko-commerce/internal/settings"
)

// SettingsSource resolves the store-wide pricing settings.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Handler exposes administrative coupon endpoints. The preview sub-total uses
// the same discount policy as order summaries.
type Handler struct {
	Svc      *Service
	Settings SettingsSource
}

type couponPayload struct {
	Code        string     `json:"code" validate:"max=64"`
	Kind        string     `json:"kind" validate:"required"`
	Value       string     `json:"value" validate:"required,numeric"`
	Scope       string     `json:"scope" validate:"omitempty,oneof=all products categories"`
	ProductIDs  []string   `json:"productIds" validate:"omitempty,dive,uuid"`
	CategoryIDs []string   `json:"categoryIds" validate:"omitempty,dive,uuid"`
	Countries   []string   `json:"countries" validate:"omitempty,dive,len=2"`
	UsageLimit  *int       `json:"usageLimit" validate:"omitempty,gte=0"`
	CouponLimit *int       `json:"couponLimit" validate:"omitempty,gte=0"`
	ActiveFrom  *time.Time `json:"activeFrom"`
	ActiveTo    *time.Time `json:"activeTo"`
}

type previewPayload struct {
	Code          string                `json:"code" validate:"required"`
	Country       string                `json:"country"`
	CustomerUsage int                   `json:"customerUsage" validate:"gte=0"`
	Lines         []pricing.LineRequest `json:"lines" validate:"required,min=1,dive"`
}

type previewResponse struct {
	SubTotal     pricing.Money `json:"subTotal"`
	Contribution Contribution  `json:"contribution"`
}

// Create handles POST /api/v1/admin/coupons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "coupon service not configured", nil)
		return
	}
	var payload couponPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	spec, err := payload.spec()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Update handles PUT /api/v1/admin/coupons/{code}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "coupon service not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "code is required", nil)
		return
	}
	var payload couponPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	spec, err := payload.spec()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	updated, err := h.Svc.Update(r.Context(), code, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Get handles GET /api/v1/admin/coupons/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "coupon service not configured", nil)
		return
	}
	spec, err := h.Svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, spec)
}

// Preview handles POST /api/v1/admin/coupons/preview. Nothing is persisted.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Settings == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "coupon service not configured", nil)
		return
	}
	var payload previewPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := pricing.LinesFromRequest(payload.Lines)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	cfg, err := h.Settings.Get(r.Context())
	if err != nil {
		common.WriteError(w, fmt.Errorf("load settings: %w", err))
		return
	}
	subTotal, err := pricing.SubTotal(lines, cfg.Policy())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), EvalInput{
		Code:     payload.Code,
		Lines:    lines,
		SubTotal: subTotal,
		Country:  payload.Country,
	}, Usage{Customer: payload.CustomerUsage})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, previewResponse{SubTotal: subTotal, Contribution: result})
}

func (p couponPayload) spec() (Spec, error) {
	kind, err := pricing.ParseDiscountKind(p.Kind)
	if err != nil {
		return Spec{}, pricing.Invalid("kind", "must be percentage or fixed_amount")
	}
	value, err := decimal.NewFromString(strings.TrimSpace(p.Value))
	if err != nil {
		return Spec{}, pricing.Invalid("value", "must be a decimal number")
	}
	scope, err := ParseScope(p.Scope)
	if err != nil {
		return Spec{}, err
	}
	productIDs, err := parseUUIDs(p.ProductIDs)
	if err != nil {
		return Spec{}, pricing.Invalid("productIds", err.Error())
	}
	categoryIDs, err := parseUUIDs(p.CategoryIDs)
	if err != nil {
		return Spec{}, pricing.Invalid("categoryIds", err.Error())
	}
	spec := Spec{
		Code:        p.Code,
		Kind:        kind,
		Value:       value,
		Scope:       scope,
		ProductIDs:  productIDs,
		CategoryIDs: categoryIDs,
		Countries:   p.Countries,
		UsageLimit:  p.UsageLimit,
		CouponLimit: p.CouponLimit,
		ActiveTo:    p.ActiveTo,
	}
	if p.ActiveFrom != nil {
		spec.ActiveFrom = *p.ActiveFrom
	}
	return spec, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("coupon not found", err))
	case errors.Is(err, ErrCodeTaken):
		common.WriteError(w, common.Conflict("coupon code already exists", err))
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrExpired),
		errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrCouponLimitReached):
		common.JSONError(w, http.StatusBadRequest, "NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
