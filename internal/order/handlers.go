package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// Handler exposes order summary endpoints.
type Handler struct {
	Svc *Service
}

type previewPayload struct {
	Lines         []pricing.LineRequest    `json:"lines" validate:"required,min=1,dive"`
	CouponCode    string                   `json:"couponCode" validate:"max=64"`
	Country       string                   `json:"country" validate:"omitempty,len=2"`
	OrderDiscount *pricing.DiscountRequest `json:"orderDiscount"`
	Shipping      *string                  `json:"shipping"`
}

type linesPayload struct {
	Lines []pricing.LineRequest `json:"lines" validate:"dive"`
}

// Preview handles POST /api/v1/orders/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service not configured", nil)
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
	in := PreviewInput{
		Lines:      lines,
		CouponCode: payload.CouponCode,
		Country:    strings.ToUpper(strings.TrimSpace(payload.Country)),
	}
	if payload.OrderDiscount != nil {
		if in.OrderDiscount, err = payload.OrderDiscount.Spec("orderDiscount"); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	if payload.Shipping != nil {
		shipping := pricing.ParseMoneyOrZero(*payload.Shipping)
		in.Shipping = &shipping
	}
	result, err := h.Svc.Preview(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

// Summary handles GET /api/v1/admin/orders/{orderId}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service not configured", nil)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.Svc.Summary(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

// ReplaceLines handles PUT /api/v1/admin/orders/{orderId}/lines.
func (h *Handler) ReplaceLines(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service not configured", nil)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var payload linesPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := pricing.LinesFromRequest(payload.Lines)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.ReplaceLines(r.Context(), orderID, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrOrderNotFound) {
		common.WriteError(w, common.NotFound("order not found", err))
		return
	}
	common.WriteError(w, err)
}
