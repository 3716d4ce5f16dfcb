// Package main is the entry point for the SES forwarder Lambda function.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/shineum/ses-forwarder/internal/config"
	"github.com/shineum/ses-forwarder/internal/forwarder"
	"github.com/shineum/ses-forwarder/internal/relay"
	"github.com/shineum/ses-forwarder/internal/relay/graph"
	"github.com/shineum/ses-forwarder/internal/relay/ses"
	"github.com/shineum/ses-forwarder/internal/relay/smtp"
	"github.com/shineum/ses-forwarder/internal/relay/stdout"
	"github.com/shineum/ses-forwarder/internal/rewrite"
	"github.com/shineum/ses-forwarder/internal/store/s3"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORWARDER_CONFIG"), "path to YAML configuration file (optional)")
	eventPath := flag.String("event", "", "handle the SES event in this JSON file once instead of starting the Lambda runtime")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		slog.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	st := s3.New(awsCfg, s3.S3StoreConfig{
		Bucket: cfg.Store.Bucket,
		Prefix: cfg.Store.Prefix,
	})

	rl, err := selectRelay(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to select relay", "error", err)
		os.Exit(1)
	}

	dispatcher := forwarder.New(st, rl, forwarder.Options{
		Routing: rewrite.RoutingConfig{
			SenderOverride: cfg.Routing.Sender,
			Recipient:      cfg.Routing.Recipient,
		},
		LargeBody: cfg.Debug.LargeBody,
		LogBody:   cfg.Debug.LogBody,
	})

	slog.Info("starting ses-forwarder",
		"bucket", cfg.Store.Bucket,
		"prefix", cfg.Store.Prefix,
		"recipient", cfg.Routing.Recipient,
		"sender_override", cfg.Routing.Sender != "",
		"relay", rl.Name(),
		"region", cfg.AWS.Region,
	)

	if *eventPath != "" {
		if err := handleFile(ctx, dispatcher, *eventPath); err != nil {
			slog.Error("failed to handle event", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(dispatcher.HandleEvent)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}

	if cfg.StaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}

	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// selectRelay builds the outbound relay named by cfg.Relay.Provider.
// The configuration must already be validated.
func selectRelay(cfg *config.Config, awsCfg aws.Config) (relay.Relay, error) {
	switch cfg.Relay.Provider {
	case config.RelaySES:
		slog.Info("using AWS SES relay", "region", cfg.AWS.Region)
		return ses.New(awsCfg), nil

	case config.RelayGraph:
		slog.Info("using Microsoft Graph relay", "sender", cfg.Relay.Graph.Sender)
		return graph.New(graph.GraphRelayConfig{
			TenantID:     cfg.Relay.Graph.TenantID,
			ClientID:     cfg.Relay.Graph.ClientID,
			ClientSecret: cfg.Relay.Graph.ClientSecret,
			Sender:       cfg.Relay.Graph.Sender,
		}), nil

	case config.RelaySMTP:
		slog.Info("using SMTP relay",
			"addr", cfg.Relay.SMTP.Addr,
			"auth_enabled", cfg.Relay.SMTP.Username != "",
		)
		return smtp.New(smtp.SMTPRelayConfig{
			Addr:     cfg.Relay.SMTP.Addr,
			Username: cfg.Relay.SMTP.Username,
			Password: cfg.Relay.SMTP.Password,
		}), nil

	case config.RelayStdout:
		slog.Info("using stdout relay")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown relay provider %q", cfg.Relay.Provider)
	}
}

// handleFile runs the dispatcher once on a saved SES event.
func handleFile(ctx context.Context, d *forwarder.Dispatcher, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read event file: %w", err)
	}

	var event events.SimpleEmailEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to parse event file: %w", err)
	}

	results, err := d.Handle(ctx, event)
	for _, r := range results {
		slog.Info("result",
			"message_id", r.MessageID,
			"recipient", r.Recipient,
			"outcome", r.Outcome.String(),
			"relay_message_id", r.RelayMessageID,
		)
	}
	return err
}
