package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/internal/utils"
)

// Client dispatches outbound notification emails over SMTP.
type Client struct {
	config *config.SMTPConfig
}

func NewClient(cfg *config.SMTPConfig) *Client {
	return &Client{
		config: cfg,
	}
}

// Send composes and delivers one message.
func (s *Client) Send(ctx context.Context, email *dto.OutboundEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := s.validateEmail(ctx, email); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	buffer, err := s.prepareMessage(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.sendToServer(ctx, email.From, email.To, buffer); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func (s *Client) validateEmail(ctx context.Context, email *dto.OutboundEmail) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPClient.validateEmail")
	defer span.Finish()

	if email == nil {
		err := errors.New("email cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}

	if email.From == "" {
		email.From = s.config.FromAddress
	}
	validation := mailvalidate.ValidateEmailSyntax(email.From)
	if !validation.IsValid {
		err := fmt.Errorf("from address %s is not valid", email.From)
		tracing.TraceErr(span, err)
		return err
	}

	if len(email.To) == 0 {
		err := errors.New("at least one recipient is required")
		tracing.TraceErr(span, err)
		return err
	}

	if email.BodyText == "" && email.BodyHTML == "" {
		err := errors.New("email must have either text or HTML content")
		tracing.TraceErr(span, err)
		return err
	}

	if email.Subject == "" {
		err := errors.New("email must have a subject")
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// prepareMessage builds the message in MIME format.
func (s *Client) prepareMessage(ctx context.Context, email *dto.OutboundEmail) (*bytes.Buffer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.prepareMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	buffer := bytes.NewBuffer(nil)
	headers := s.buildHeaders(email)

	var err error
	if email.BodyHTML != "" || email.Attachment != nil {
		err = s.buildMultipartMessage(ctx, email, headers, buffer)
	} else {
		err = s.buildPlainTextMessage(email, headers, buffer)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return buffer, nil
}

func (s *Client) buildHeaders(email *dto.OutboundEmail) map[string]string {
	from := email.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, email.From)
	}

	domain := email.From
	if at := strings.LastIndex(email.From, "@"); at >= 0 {
		domain = email.From[at+1:]
	}

	return map[string]string{
		"From":         from,
		"To":           strings.Join(email.To, ", "),
		"Subject":      email.Subject,
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"Message-ID":   utils.GenerateMessageID(domain, email.Subject),
		"MIME-Version": "1.0",
	}
}

func (s *Client) buildMultipartMessage(ctx context.Context, email *dto.OutboundEmail, headers map[string]string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPClient.buildMultipartMessage")
	defer span.Finish()

	writer := multipart.NewWriter(buffer)
	headers["Content-Type"] = "multipart/mixed; boundary=" + writer.Boundary()

	writeHeaders(headers, buffer)

	if email.BodyText != "" {
		if err := addPart(writer, "text/plain; charset=UTF-8", []byte(email.BodyText)); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	if email.BodyHTML != "" {
		if err := addPart(writer, "text/html; charset=UTF-8", []byte(email.BodyHTML)); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	if email.Attachment != nil {
		if err := addAttachment(writer, email.Attachment); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	return writer.Close()
}

func (s *Client) buildPlainTextMessage(email *dto.OutboundEmail, headers map[string]string, buffer *bytes.Buffer) error {
	headers["Content-Type"] = "text/plain; charset=UTF-8"
	writeHeaders(headers, buffer)
	_, err := buffer.WriteString(email.BodyText)
	return err
}

func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	for k, v := range headers {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	buffer.WriteString("\r\n")
}

func addPart(writer *multipart.Writer, contentType string, content []byte) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to create part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write part content: %w", err)
	}
	return nil
}

func addAttachment(writer *multipart.Writer, attachment *dto.EmailAttachment) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", attachment.ContentType, attachment.Filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return fmt.Errorf("failed to create attachment part: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(attachment.Data)))
	base64.StdEncoding.Encode(encoded, attachment.Data)
	if _, err := part.Write(encoded); err != nil {
		return fmt.Errorf("failed to write attachment content: %w", err)
	}
	return nil
}

// sendToServer delivers the prepared message, honoring the configured
// transport security.
func (s *Client) sendToServer(ctx context.Context, from string, recipients []string, buffer *bytes.Buffer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.sendToServer")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Server)

	switch enum.EmailSecurity(s.config.Security) {
	case enum.EmailSecurityStartTLS:
		return s.sendWithSTARTTLS(ctx, addr, auth, from, recipients, buffer)
	case enum.EmailSecurityTLS:
		return s.sendWithExplicitTLS(ctx, addr, auth, from, recipients, buffer)
	}

	if err := smtp.SendMail(addr, auth, from, recipients, buffer.Bytes()); err != nil {
		err = fmt.Errorf("failed to send email: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *Client) sendWithSTARTTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPClient.sendWithSTARTTLS")
	defer span.Finish()
	span.LogKV("smtp_server", s.config.Server)
	span.LogKV("smtp_port", s.config.Port)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Server)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: s.config.Server,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		err = fmt.Errorf("failed to start TLS: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return transmit(span, client, from, recipients, buffer)
}

func (s *Client) sendWithExplicitTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPClient.sendWithExplicitTLS")
	defer span.Finish()
	span.LogKV("address", addr)

	tlsConfig := &tls.Config{
		ServerName: s.config.Server,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Server)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return transmit(span, client, from, recipients, buffer)
}

func transmit(span opentracing.Span, client *smtp.Client, from string, recipients []string, buffer *bytes.Buffer) error {
	if err := client.Mail(from); err != nil {
		err = fmt.Errorf("SMTP MAIL command failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	for _, recipient := range recipients {
		if err := client.Rcpt(recipient); err != nil {
			err = fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
			tracing.TraceErr(span, err)
			return err
		}
	}

	dataWriter, err := client.Data()
	if err != nil {
		err = fmt.Errorf("SMTP DATA command failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		err = fmt.Errorf("failed to write email data: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if err = dataWriter.Close(); err != nil {
		err = fmt.Errorf("failed to close data writer: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}
