package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/i18n"
	"github.com/maxwin66/companion/pkg/service/numbers"
)

// OfferingView is an offering with its display price.
type OfferingView struct {
	domain.Offering
	PriceLabel string `json:"price_label"`
}

type PurchaseRequest struct {
	ServiceID string `json:"service_id"`
}

type PurchaseResponse struct {
	Lease      domain.Lease `json:"lease"`
	Price      int64        `json:"price"`
	PriceLabel string       `json:"price_label"`
	Credits    int          `json:"credits"`
}

type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until device is free and returns the release func.
func (l *deviceLocks) lock(device string) func() {
	l.mu.Lock()
	m, ok := l.locks[device]
	if !ok {
		m = &sync.Mutex{}
		l.locks[device] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func newOfferingView(o domain.Offering) OfferingView {
	return OfferingView{Offering: o, PriceLabel: i18n.FormatPrice(o.Price)}
}

// HandleVirtualSIM proxies provider actions so the provider key never
// reaches the browser.
func (h *Handler) HandleVirtualSIM(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	if h.numbers == nil {
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindProviderFailure, "virtual numbers are not configured"))
		return
	}

	action := strings.TrimSpace(r.URL.Query().Get("action"))
	if r.Method == http.MethodPost {
		if action != numbers.ActionPurchase {
			h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "unsupported action "+action))
			return
		}
		h.handlePurchase(w, r, settings)
		return
	}

	switch action {
	case numbers.ActionServices:
		offerings, err := h.numbers.ListServices(r.Context())
		if err != nil {
			h.respondWithDomainError(w, settings, err)
			return
		}
		views := make([]OfferingView, 0, len(offerings))
		for _, o := range offerings {
			views = append(views, newOfferingView(o))
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"services": views})

	case numbers.ActionNumbers:
		leases, err := h.numbers.ListNumbers(r.Context())
		if err != nil {
			h.respondWithDomainError(w, settings, err)
			return
		}
		if leases == nil {
			leases = []domain.Lease{}
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"numbers": leases})

	case numbers.ActionSMS:
		msgs, err := h.numbers.ListSMS(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			h.respondWithDomainError(w, settings, err)
			return
		}
		if msgs == nil {
			msgs = []domain.SMS{}
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"sms": msgs})

	default:
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "unsupported action "+action))
	}
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request, settings domain.Settings) {
	var req PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "service_id is required"))
		return
	}

	// Purchases on one device run one at a time, each against the balance
	// the previous one left behind.
	unlock := h.purchaseLocks.lock(deviceID(r))
	defer unlock()

	resolver, sess, ok := h.requireSession(w, r, settings)
	if !ok {
		return
	}

	// Prices come from the provider listing, never from the client.
	offerings, err := h.numbers.ListServices(r.Context())
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	offering, found := numbers.FindOffering(offerings, req.ServiceID)
	if !found {
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "unknown service "+req.ServiceID))
		return
	}
	if offering.Status != domain.OfferingAvailable {
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "service "+req.ServiceID+" is unavailable"))
		return
	}

	// A rented number is paid for even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	res, err := h.numbers.Purchase(ctx, offering, sess.Credits)
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	credits := resolver.Update(ctx, sess.Identity, res.Balance)

	respondWithJSON(w, http.StatusOK, PurchaseResponse{
		Lease:      res.Lease,
		Price:      res.Price,
		PriceLabel: i18n.FormatPrice(res.Price),
		Credits:    credits,
	})
}
