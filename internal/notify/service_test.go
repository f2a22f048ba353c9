package notify

import (
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port:      "587",
				From:      "sync@example.com",
				Recipient: "ops@example.com",
			},
			expected: false,
		},
		{
			name: "missing recipient",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "sync@example.com",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host:      "smtp.example.com",
				Port:      "587",
				From:      "sync@example.com",
				Recipient: "ops@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderSyncFailureTemplate(t *testing.T) {
	data := SyncFailureData{
		AppName:  "Syllabus",
		CourseID: 42,
		Pipeline: "current",
		When:     "Sat, 14 Mar 2026 09:30:00 UTC",
		Reason:   "duplicate tag names: algebra",
	}

	html, err := renderTemplate(syncFailureEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Syllabus") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "course 42") {
		t.Error("template should contain course id")
	}
	if !strings.Contains(html, "duplicate tag names: algebra") {
		t.Error("template should contain the failure reason")
	}
}

func TestSendSyncFailureAddressesMaintainer(t *testing.T) {
	svc := NewService(Config{
		Host:      "smtp.example.com",
		Port:      "587",
		From:      "sync@example.com",
		FromName:  "Syllabus Sync",
		Recipient: "ops@example.com",
	})

	var gotTo []string
	var gotMsg []byte
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := svc.SendSyncFailure(7, "legacy", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), "db unreachable")
	if err != nil {
		t.Fatalf("SendSyncFailure failed: %v", err)
	}

	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("to = %v, want maintainer address", gotTo)
	}
	body := string(gotMsg)
	if !strings.Contains(body, "Subject: Tag sync failed for course 7") {
		t.Error("message missing subject line")
	}
	if !strings.Contains(body, "Syllabus Sync <sync@example.com>") {
		t.Error("message missing display from")
	}
	if !strings.Contains(body, "db unreachable") {
		t.Error("message missing failure reason")
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"x@example.com"}, "s", "b"); err == nil {
		t.Error("expected error for unconfigured service")
	}
}
