package dto

// OutboundEmail is a fully composed message handed to the SMTP sender.
type OutboundEmail struct {
	From     string
	To       []string
	Subject  string
	BodyText string
	BodyHTML string

	Attachment *EmailAttachment
}

type EmailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
