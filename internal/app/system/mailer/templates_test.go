package mailer_test

import (
	"strings"
	"testing"

	"github.com/crewtask/crewtask/internal/app/system/mailer"
)

func TestBuildVerificationEmail(t *testing.T) {
	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:   "CrewTask",
		Code:       "123456",
		VerifyLink: "https://crewtask.test/verify?uid=u&code=123456",
		ExpiresIn:  "10 minutes",
	})

	if !strings.Contains(msg.Subject, "CrewTask") {
		t.Errorf("subject missing site name: %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "123456") {
		t.Error("text body missing code")
	}
	if !strings.Contains(msg.TextBody, "10 minutes") {
		t.Error("text body missing expiry")
	}
	if !strings.Contains(msg.HTMLBody, "123456") {
		t.Error("html body missing code")
	}
	if !strings.Contains(msg.HTMLBody, "https://crewtask.test/verify?uid=u&amp;code=123456") &&
		!strings.Contains(msg.HTMLBody, "https://crewtask.test/verify?uid=u&code=123456") {
		t.Error("html body missing verify link")
	}
}

func TestBuildResetEmail(t *testing.T) {
	msg := mailer.BuildResetEmail(mailer.ResetEmailData{
		SiteName:  "CrewTask",
		ResetLink: "https://crewtask.test/reset?uid=u&code=123456",
		ExpiresIn: "10 minutes",
	})

	if !strings.Contains(msg.Subject, "Reset") {
		t.Errorf("unexpected subject: %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "https://crewtask.test/reset?uid=u&code=123456") {
		t.Error("text body missing reset link")
	}
}
