package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/dustin/go-humanize"
)

// Links builds the frontend URLs embedded in outbound email.
type Links struct {
	FrontendURL string
}

func (l Links) base() string { return strings.TrimRight(l.FrontendURL, "/") }

func (l Links) ResetPassword(token string) string {
	return l.base() + "/reset-password/" + url.PathEscape(token)
}

func (l Links) VerifyEmail(token string) string {
	return l.base() + "/verify-email/" + url.PathEscape(token)
}

func (l Links) Invitation(token string) string {
	return l.base() + "/signup?invite=" + url.QueryEscape(token)
}

// Mailer is the outbound email queue the services write to.
type Mailer = mail.Queue

// discardMailer drops everything; used when no mailer is wired.
type discardMailer struct{}

func (discardMailer) Dispatch(context.Context, mail.Message) {}

func mailerOrDiscard(m Mailer) Mailer {
	if m == nil {
		return discardMailer{}
	}
	return m
}

// expiresIn renders ttl for humans, e.g. "15 minutes".
func expiresIn(ttl time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(ttl), "", ""))
}
