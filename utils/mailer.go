package utils

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends one transactional email. Implementations may fail per message;
// callers decide whether a failure aborts or just gets tallied.
type Mailer interface {
	Send(fromName, fromEmail, to, subject, htmlBody string) error
}

// SMTPMailer delivers mail through a single SMTP account via gomail
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}
}

func (m *SMTPMailer) Send(fromName, fromEmail, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", fromName, fromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", GenerateMessageToken(to+subject), m.Host))
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending email to %s: %w", to, err)
	}
	return nil
}
