// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// parentlink runs the school-communication backend: notification
// dispatch, device-token registration and bulk parent-account
// provisioning behind a single HTTP API.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/identity"
	"github.com/parentlink/parentlink/portal/mailer"
	"github.com/parentlink/parentlink/portal/portalapi"
	"github.com/parentlink/parentlink/portal/portaldb"
	"github.com/parentlink/parentlink/portal/provisioning"
	"github.com/parentlink/parentlink/portal/pushnotifications"
)

type config struct {
	Address     string
	DatabaseURL string

	Identity identity.Config
	Broker   pushnotifications.BrokerConfig
	Sender   pushnotifications.SenderConfig
	Mail     mailer.Config
}

func loadConfig() (config, error) {
	pflag.String("config", "", "path to an optional yaml config file")
	pflag.String("address", ":8080", "http listening address")
	pflag.Parse()

	v := viper.New()
	v.SetEnvPrefix("parentlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return config{}, err
	}

	v.SetDefault("address", ":8080")
	v.SetDefault("fcm.token-url", "")
	v.SetDefault("mail.port", 587)

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, err
		}
	}

	return config{
		Address:     v.GetString("address"),
		DatabaseURL: v.GetString("database.url"),
		Identity: identity.Config{
			URL:            v.GetString("identity.url"),
			ServiceRoleKey: v.GetString("identity.service-role-key"),
		},
		Broker: pushnotifications.BrokerConfig{
			ClientEmail: v.GetString("fcm.client-email"),
			PrivateKey:  v.GetString("fcm.private-key"),
			ProjectID:   v.GetString("fcm.project-id"),
			TokenURL:    v.GetString("fcm.token-url"),
		},
		Sender: pushnotifications.SenderConfig{
			ServerKey: v.GetString("fcm.server-key"),
		},
		Mail: mailer.Config{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
		},
	}, nil
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("parentlink exited with error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := portaldb.Open(ctx, log.Named("portaldb"), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.MigrateSchema(ctx); err != nil {
		return err
	}

	broker := pushnotifications.NewBroker(log.Named("broker"), cfg.Broker)
	sender := pushnotifications.NewSender(log.Named("sender"), broker, cfg.Sender)
	dispatch := pushnotifications.NewService(log.Named("pushnotifications"),
		db.DeviceTokens(), db.Notifications(), db.Recipients(), sender)

	identities := identity.NewClient(log.Named("identity"), cfg.Identity)
	provisioner := provisioning.NewProvisioner(log.Named("provisioner"), db.Parents(), identities)

	var credentialsMailer provisioning.CredentialsMailer
	if cfg.Mail.Host != "" {
		credentialsMailer = mailer.NewMailer(log.Named("mailer"), cfg.Mail)
	}
	bulk := provisioning.NewService(log.Named("provisioning"), db.Students(), provisioner, credentialsMailer)

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}

	server := portalapi.NewServer(log.Named("portalapi"), listener,
		portalapi.Config{Address: cfg.Address},
		portalapi.NewNotifications(log.Named("portalapi:notifications"), dispatch, db.Notifications()),
		portalapi.NewDeviceTokens(log.Named("portalapi:devicetokens"), db.DeviceTokens()),
		portalapi.NewProvisioning(log.Named("portalapi:provisioning"), bulk),
	)

	log.Info("parentlink started", zap.String("address", cfg.Address))
	return server.Run(ctx)
}
