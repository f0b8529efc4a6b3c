package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/buildingpro/sentinel/internal/config"
	"github.com/buildingpro/sentinel/internal/models"
)

// EmailSender delivers messages to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PhoneSender delivers short messages to a phone number.
type PhoneSender interface {
	SendMessage(ctx context.Context, phone, body string) error
}

// Sender bundles both delivery channels.
type Sender interface {
	EmailSender
	PhoneSender
}

// NewSender builds the delivery implementation selected by config.
func NewSender(ctx context.Context, cfg *config.DeliveryConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Mode {
	case "ses":
		email, err := NewSESEmailSender(ctx, cfg.SESRegion, cfg.SESSender)
		if err != nil {
			return nil, err
		}
		// SES has no messaging channel; phone delivery rides Twilio
		twilio := NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		return &splitSender{email: email, phone: twilio}, nil
	case "twilio":
		twilio := NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		return &splitSender{email: &ConsoleSender{logger: logger}, phone: twilio}, nil
	case "console":
		return &ConsoleSender{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", cfg.Mode)
	}
}

type splitSender struct {
	email EmailSender
	phone PhoneSender
}

func (s *splitSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.email.SendEmail(ctx, to, subject, body)
}

func (s *splitSender) SendMessage(ctx context.Context, phone, body string) error {
	return s.phone.SendMessage(ctx, phone, body)
}

// SESEmailSender delivers email through Amazon SES.
type SESEmailSender struct {
	client *ses.Client
	sender string
}

func NewSESEmailSender(ctx context.Context, region, sender string) (*SESEmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESEmailSender{
		client: ses.NewFromConfig(awsCfg),
		sender: sender,
	}, nil
}

func (s *SESEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	return nil
}

// TwilioSender delivers WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
	baseURL    string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.twilio.com",
	}
}

func (s *TwilioSender) SendMessage(ctx context.Context, phone, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	form := url.Values{}
	form.Set("From", "whatsapp:"+s.from)
	form.Set("To", "whatsapp:"+phone)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: twilio responded %d", models.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

// ConsoleSender logs deliveries instead of sending them. Default in
// development so the flows are exercisable without provider accounts.
type ConsoleSender struct {
	logger *slog.Logger
}

func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info("delivery (console): email",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

func (s *ConsoleSender) SendMessage(ctx context.Context, phone, body string) error {
	s.logger.Info("delivery (console): message",
		slog.String("phone", phone),
		slog.String("body", body),
	)
	return nil
}
