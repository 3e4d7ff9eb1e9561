package numbers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/tidwall/gjson"
)

// DefaultDuration is shown when the provider does not say how long a rental lasts.
const DefaultDuration = "20 minutes"

// Field aliases observed across provider endpoints, in lookup order.
var (
	offeringIDFields       = []string{"service_id", "serviceId", "service", "id", "code"}
	offeringNameFields     = []string{"service_name", "serviceName", "name", "title"}
	offeringCountryFields  = []string{"country", "country_name", "countryName", "country_code"}
	offeringPriceFields    = []string{"price", "cost", "harga", "amount"}
	offeringStatusFields   = []string{"status", "availability", "available"}
	offeringDurationFields = []string{"duration", "validity", "expires_in"}

	leaseIDFields        = []string{"id", "order_id", "orderId", "activation_id", "activationId"}
	leaseNumberFields    = []string{"number", "phone", "phone_number", "phoneNumber"}
	leaseServiceFields   = []string{"service_id", "serviceId", "service"}
	leaseActivatedFields = []string{"activated_at", "activatedAt", "created_at", "createdAt", "start_time"}
	leaseExpiresFields   = []string{"expires_at", "expiresAt", "expired_at", "expiry", "end_time"}
	leaseCountFields     = []string{"sms_count", "message_count", "messages_count", "messageCount"}
	leaseStatusFields    = []string{"status", "state"}

	smsIDFields       = []string{"id", "sms_id", "smsId"}
	smsLeaseFields    = []string{"order_id", "orderId", "lease_id", "activation_id"}
	smsSenderFields   = []string{"sender", "from", "source"}
	smsTextFields     = []string{"text", "message", "sms", "content", "code"}
	smsReceivedFields = []string{"received_at", "receivedAt", "date", "created_at"}
)

// NormalizeOffering maps a raw provider service entry.
//
//	service_id: first alias present, else ""
//	name:       defaults to the service id
//	country:    defaults to ""
//	price:      defaults to 0, rounded to whole rupiah
//	status:     "available" only for an explicit positive value, else "unavailable"
//	duration:   defaults to DefaultDuration; bare numbers are minutes
//	premium:    price > domain.PremiumThreshold
func NormalizeOffering(raw gjson.Result) domain.Offering {
	o := domain.Offering{
		ServiceID: firstString(raw, offeringIDFields...),
		Country:   firstString(raw, offeringCountryFields...),
		Price:     firstPrice(raw, offeringPriceFields...),
		Status:    domain.OfferingUnavailable,
		Duration:  DefaultDuration,
	}
	o.Name = firstString(raw, offeringNameFields...)
	if o.Name == "" {
		o.Name = o.ServiceID
	}
	if v, ok := first(raw, offeringStatusFields...); ok && isAvailable(v) {
		o.Status = domain.OfferingAvailable
	}
	if v, ok := first(raw, offeringDurationFields...); ok {
		switch v.Type {
		case gjson.Number:
			o.Duration = fmt.Sprintf("%d minutes", v.Int())
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				o.Duration = s
			}
		}
	}
	o.Premium = domain.IsPremium(o.Price)
	return o
}

// NormalizeLease maps a raw provider order entry.
//
//	id, number, service_id: first alias present, else ""
//	activated_at, expires_at: RFC3339, "2006-01-02 15:04:05" or unix time; nil when absent
//	message_count: count alias, else length of a "messages" array, else 0
//	status: "active" only for an explicit live state, else "expired"
func NormalizeLease(raw gjson.Result) domain.Lease {
	l := domain.Lease{
		ID:          firstString(raw, leaseIDFields...),
		Number:      firstString(raw, leaseNumberFields...),
		ServiceID:   firstString(raw, leaseServiceFields...),
		ActivatedAt: firstTime(raw, leaseActivatedFields...),
		ExpiresAt:   firstTime(raw, leaseExpiresFields...),
		Status:      domain.LeaseExpired,
	}
	if v, ok := first(raw, leaseCountFields...); ok {
		l.MessageCount = int(v.Int())
	} else if msgs := raw.Get("messages"); msgs.IsArray() {
		l.MessageCount = len(msgs.Array())
	}
	if l.MessageCount < 0 {
		l.MessageCount = 0
	}
	switch strings.ToLower(firstString(raw, leaseStatusFields...)) {
	case "active", "waiting", "pending", "received", "ok":
		l.Status = domain.LeaseActive
	}
	return l
}

// NormalizeSMS maps a raw provider message entry. Missing fields stay empty;
// received_at is nil when absent or unparseable.
func NormalizeSMS(raw gjson.Result) domain.SMS {
	return domain.SMS{
		ID:         firstString(raw, smsIDFields...),
		LeaseID:    firstString(raw, smsLeaseFields...),
		Sender:     firstString(raw, smsSenderFields...),
		Text:       firstString(raw, smsTextFields...),
		ReceivedAt: firstTime(raw, smsReceivedFields...),
	}
}

func first(raw gjson.Result, fields ...string) (gjson.Result, bool) {
	for _, f := range fields {
		if v := raw.Get(f); v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func firstString(raw gjson.Result, fields ...string) string {
	for _, f := range fields {
		v, ok := first(raw, f)
		if !ok || v.IsObject() || v.IsArray() {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

func firstPrice(raw gjson.Result, fields ...string) int64 {
	v, ok := first(raw, fields...)
	if !ok {
		return 0
	}
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, ok := parsePriceString(v.Str)
		if !ok {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f))
}

// parsePriceString accepts "12000", "12000.5", "12.000" and "Rp12.000,50".
func parsePriceString(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Rp"))
	whole, frac, hasComma := strings.Cut(s, ",")
	if hasComma || isDotGrouped(whole) {
		s = strings.ReplaceAll(whole, ".", "")
		if hasComma {
			s += "." + frac
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// isDotGrouped reports whether s looks like "1.250.000".
func isDotGrouped(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for i, p := range parts {
		if i > 0 && len(p) != 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func firstTime(raw gjson.Result, fields ...string) *time.Time {
	v, ok := first(raw, fields...)
	if !ok {
		return nil
	}
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n <= 0 {
			return nil
		}
		var t time.Time
		if n > 1e12 {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return &t
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			t := time.Unix(n, 0).UTC()
			return &t
		}
	}
	return nil
}

func isAvailable(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num > 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "available", "ready", "active", "true", "1", "yes", "tersedia":
			return true
		}
	}
	return false
}
