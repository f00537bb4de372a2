package port

import "context"

// MailMessage is a rendered HTML email ready for dispatch.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

// MailDispatcher delivers templated email through an external transport.
type MailDispatcher interface {
	Send(ctx context.Context, msg MailMessage) error
}
