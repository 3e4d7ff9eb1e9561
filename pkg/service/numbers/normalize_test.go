package numbers

import (
	"testing"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/tidwall/gjson"
)

func TestNormalizeOfferingFull(t *testing.T) {
	t.Parallel()

	o := NormalizeOffering(gjson.Parse(`{
		"serviceId": "tg",
		"serviceName": "Telegram",
		"countryName": "Indonesia",
		"cost": "15000",
		"availability": true,
		"validity": 30
	}`))
	want := domain.Offering{
		ServiceID: "tg",
		Name:      "Telegram",
		Country:   "Indonesia",
		Price:     15000,
		Status:    domain.OfferingAvailable,
		Duration:  "30 minutes",
		Premium:   true,
	}
	if o != want {
		t.Fatalf("offering = %+v, want %+v", o, want)
	}
}

func TestNormalizeOfferingDefaults(t *testing.T) {
	t.Parallel()

	o := NormalizeOffering(gjson.Parse(`{"id":"wa"}`))
	if o.ServiceID != "wa" || o.Name != "wa" {
		t.Fatalf("offering = %+v", o)
	}
	if o.Status != domain.OfferingUnavailable {
		t.Fatalf("status = %q, want unavailable", o.Status)
	}
	if o.Duration != DefaultDuration {
		t.Fatalf("duration = %q, want %q", o.Duration, DefaultDuration)
	}
	if o.Price != 0 || o.Premium {
		t.Fatalf("price = %d premium = %v", o.Price, o.Premium)
	}
}

func TestNormalizeOfferingStatusNeverFailsOpen(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{"id":"a"}`,
		`{"id":"a","status":null}`,
		`{"id":"a","status":""}`,
		`{"id":"a","status":"maintenance"}`,
		`{"id":"a","available":false}`,
		`{"id":"a","available":0}`,
	} {
		if o := NormalizeOffering(gjson.Parse(raw)); o.Status != domain.OfferingUnavailable {
			t.Fatalf("%s -> status %q, want unavailable", raw, o.Status)
		}
	}
}

func TestNormalizeOfferingPremiumBoundary(t *testing.T) {
	t.Parallel()

	at := NormalizeOffering(gjson.Parse(`{"id":"a","price":10000}`))
	above := NormalizeOffering(gjson.Parse(`{"id":"a","price":10001}`))
	if at.Premium {
		t.Fatal("price at threshold should not be premium")
	}
	if !above.Premium {
		t.Fatal("price above threshold should be premium")
	}
}

func TestParsePriceString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{`{"price":"12000"}`, 12000},
		{`{"price":"12.000"}`, 12000},
		{`{"price":"Rp1.250.000"}`, 1250000},
		{`{"price":"12000.6"}`, 12001},
		{`{"price":"Rp12.000,50"}`, 12001},
		{`{"price":"gratis"}`, 0},
		{`{"price":-5}`, 0},
	}
	for _, tt := range tests {
		if got := firstPrice(gjson.Parse(tt.in), "price"); got != tt.want {
			t.Fatalf("firstPrice(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLease(t *testing.T) {
	t.Parallel()

	l := NormalizeLease(gjson.Parse(`{
		"activation_id": 991,
		"phone_number": "+62811",
		"createdAt": 1760000000,
		"expired_at": "2026-10-14 10:30:00",
		"messages": [{"text":"a"},{"text":"b"}],
		"state": "WAITING"
	}`))
	if l.ID != "991" || l.Number != "+62811" {
		t.Fatalf("lease = %+v", l)
	}
	if l.ActivatedAt == nil || !l.ActivatedAt.Equal(time.Unix(1760000000, 0)) {
		t.Fatalf("activated = %v", l.ActivatedAt)
	}
	if l.ExpiresAt == nil || !l.ExpiresAt.Equal(time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("expires = %v", l.ExpiresAt)
	}
	if l.MessageCount != 2 || l.Status != domain.LeaseActive {
		t.Fatalf("count = %d status = %q", l.MessageCount, l.Status)
	}
}

func TestNormalizeLeaseDefaults(t *testing.T) {
	t.Parallel()

	l := NormalizeLease(gjson.Parse(`{"number":"+62811"}`))
	if l.Status != domain.LeaseExpired {
		t.Fatalf("status = %q, want expired", l.Status)
	}
	if l.ActivatedAt != nil || l.ExpiresAt != nil || l.MessageCount != 0 {
		t.Fatalf("lease = %+v", l)
	}
	l = NormalizeLease(gjson.Parse(`{"id":"x","sms_count":3,"status":"cancelled"}`))
	if l.Status != domain.LeaseExpired || l.MessageCount != 3 {
		t.Fatalf("lease = %+v", l)
	}
}

func TestNormalizeSMS(t *testing.T) {
	t.Parallel()

	s := NormalizeSMS(gjson.Parse(`{"sms_id":"7","orderId":"L1","source":"Google","code":"G-123456","receivedAt":"2026-10-14T10:00:00Z"}`))
	if s.ID != "7" || s.LeaseID != "L1" || s.Sender != "Google" || s.Text != "G-123456" {
		t.Fatalf("sms = %+v", s)
	}
	if s.ReceivedAt == nil {
		t.Fatal("received_at missing")
	}
	empty := NormalizeSMS(gjson.Parse(`{}`))
	if empty != (domain.SMS{}) {
		t.Fatalf("empty sms = %+v", empty)
	}
}

func TestItemsShapes(t *testing.T) {
	t.Parallel()

	if n := len(items(gjson.Parse(`[{"id":1},{"id":2}]`))); n != 2 {
		t.Fatalf("array items = %d", n)
	}
	if n := len(items(gjson.Parse(`{"data":[{"id":1}]}`))); n != 1 {
		t.Fatalf("data items = %d", n)
	}
	if n := len(items(gjson.Parse(`{"id":1}`))); n != 1 {
		t.Fatalf("object items = %d", n)
	}
	if n := len(items(gjson.Parse(`"x"`))); n != 0 {
		t.Fatalf("scalar items = %d", n)
	}
}
