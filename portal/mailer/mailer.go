// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package mailer delivers generated credentials to parents over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/parentlink/parentlink/portal/provisioning"
)

var mon = monkit.Package()

// Error represents errors from the credentials mailer.
var Error = errs.Class("mailer")

// ensures that Mailer implements provisioning.CredentialsMailer.
var _ provisioning.CredentialsMailer = (*Mailer)(nil)

// Config contains SMTP settings.
type Config struct {
	Host     string `help:"SMTP server host" default:""`
	Port     int    `help:"SMTP server port" default:"587"`
	Username string `help:"SMTP user" default:""`
	Password string `help:"SMTP password" default:""`
	From     string `help:"sender address for portal mail" default:""`
}

// Mailer sends credentials email through an SMTP relay.
type Mailer struct {
	log    *zap.Logger
	dialer *gomail.Dialer
	config Config
}

// NewMailer creates a new credentials mailer.
func NewMailer(log *zap.Logger, config Config) *Mailer {
	return &Mailer{
		log:    log,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		config: config,
	}
}

// SendCredentials emails a parent their generated portal login.
func (m *Mailer) SendCredentials(ctx context.Context, email, parentName, username, password, studentName string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if m.config.Host == "" || m.config.From == "" {
		return Error.New("SMTP is not configured")
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your login credentials for the school parent portal have been created:\n\n"+
			"Username: %s\nPassword: %s\n\n"+
			"You can now log in to view %s's academic progress.\n\n"+
			"Please change your password after first login.\n\n"+
			"Best regards,\nSchool Administration",
		parentName, username, password, studentName)

	message := gomail.NewMessage()
	message.SetHeader("From", m.config.From)
	message.SetHeader("To", email)
	message.SetHeader("Subject", "Your School Portal Login Credentials")
	message.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(message); err != nil {
		return Error.Wrap(err)
	}

	m.log.Info("credentials email sent", zap.String("to", email))
	return nil
}
