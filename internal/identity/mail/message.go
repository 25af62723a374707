package mail

import "context"

// Template names a rendered email.
type Template string

const (
	TemplateEmailVerification Template = "email_verification"
	TemplatePasswordReset     Template = "password_reset"
	TemplateInvitation        Template = "invitation"
)

// Data keys understood by the templates.
const (
	KeyName    = "name"
	KeyLink    = "link"
	KeyExpires = "expires"
	KeyCompany = "company"
)

// Message is one outbound email before rendering.
type Message struct {
	To       string            `msgpack:"to"`
	Template Template          `msgpack:"template"`
	Data     map[string]string `msgpack:"data"`
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Queue hands a message off for asynchronous delivery. Dispatch never
// blocks on delivery and never reports delivery failures to the caller.
type Queue interface {
	Dispatch(ctx context.Context, msg Message)
}
