package notification

import (
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"FlowGuard/internal/config"
	"FlowGuard/internal/model"
)

func TestAlertMsg(t *testing.T) {
	alert := &model.Alert{FlowID: "a:1-b:2-6", AttackType: "DDoS", SeverityScore: 8.1, RecommendedAction: "block"}
	msg, err := alertMsg("flowguard.alerts", alert)
	if err != nil {
		t.Fatalf("alertMsg() error = %v", err)
	}
	if msg.Subject != "flowguard.alerts" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.Header.Get(HeaderAttack) != "DDoS" || msg.Header.Get(HeaderSeverity) != "8.1" || msg.Header.Get(HeaderAction) != "block" {
		t.Errorf("unexpected headers: %v", msg.Header)
	}
	var decoded model.Alert
	if err := json.Unmarshal(msg.Data, &decoded); err != nil || decoded.FlowID != alert.FlowID {
		t.Errorf("body does not round trip: %v %+v", err, decoded)
	}
}

func TestEmailNotifier_Send(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{
		Host: "mail.example.com", Port: 587, From: "ids@example.com", To: "soc@example.com, , oncall@example.com",
	})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := n.Send("FlowGuard alert", "<h3>DDoS</h3>"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "oncall@example.com" {
		t.Errorf("recipients = %v", gotTo)
	}
	for _, want := range []string{"Subject: FlowGuard alert\r\n", "Content-Type: text/html", "\r\n\r\n<h3>DDoS</h3>"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }
	if err := n.Send("s", "b"); err == nil {
		t.Error("expected the SMTP error to propagate")
	}

	empty := NewEmailNotifier(config.SMTPConfig{Host: "h", Port: 25})
	if err := empty.Send("s", "b"); err == nil {
		t.Error("expected an error without recipients")
	}
}
