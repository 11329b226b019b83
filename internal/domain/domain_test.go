package domain

import (
	"testing"
	"time"
)

func TestStatusSeverityOrdering(t *testing.T) {
	if !(StatusSafe.Severity() < StatusWatch.Severity() &&
		StatusWatch.Severity() < StatusWarning.Severity() &&
		StatusWarning.Severity() < StatusDanger.Severity()) {
		t.Fatal("expected safe < watch < warning < danger")
	}
	if Status("bogus").IsValid() {
		t.Fatal("expected unknown status to be invalid")
	}
}

func TestStatusIsCritical(t *testing.T) {
	if !StatusWarning.IsCritical() || !StatusDanger.IsCritical() {
		t.Fatal("expected warning and danger to be critical")
	}
	if StatusWatch.IsCritical() || StatusSafe.IsCritical() {
		t.Fatal("expected watch and safe to be non-critical")
	}
}

func TestNoSignalTrend(t *testing.T) {
	tr := NoSignalTrend("sahm")
	if tr.Direction1d != DirectionFlat || tr.Direction7d != DirectionFlat {
		t.Fatalf("expected flat directions, got %+v", tr)
	}
	if tr.ValueChange1d != nil || tr.PctChange7d != nil || tr.StatusChanged1d || tr.PrevStatus7d != nil {
		t.Fatalf("expected empty change fields, got %+v", tr)
	}
}

func TestDateOfTruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	got := DateOf(time.Date(2026, 3, 9, 22, 30, 0, 0, loc))
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSubscriberAddress(t *testing.T) {
	s := Subscriber{Email: "a@example.com", EmailEnabled: true, Phone: "+15550100", SMSEnabled: false}
	if addr, ok := s.Address(ChannelEmail); !ok || addr != "a@example.com" {
		t.Fatalf("expected enabled email, got %q %v", addr, ok)
	}
	if _, ok := s.Address(ChannelSMS); ok {
		t.Fatal("expected sms disabled")
	}
	if _, ok := s.Address(ChannelTelegram); ok {
		t.Fatal("expected telegram disabled without chat id")
	}
}

func TestChannelAndMessageTypeValidation(t *testing.T) {
	if !ChannelSMS.IsValid() || Channel("fax").IsValid() {
		t.Fatal("unexpected channel validation result")
	}
	if !MessageWelcome.IsValid() || MessageType("promo").IsValid() {
		t.Fatal("unexpected message type validation result")
	}
}

func TestDedupKeyUsesCalendarDate(t *testing.T) {
	a := DedupKey{Recipient: "+1555", Channel: ChannelSMS, MessageType: MessageRecessionAlert, Date: time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)}
	b := a
	b.Date = time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	if a.String() != b.String() {
		t.Fatalf("expected same key within a day, got %q and %q", a, b)
	}
	if a.String() != "dedup:recession_alert:sms:+1555:2026-03-10" {
		t.Fatalf("unexpected key %q", a)
	}
}
