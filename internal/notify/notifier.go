// Package notify tells users and downstream systems that an enrichment job
// has finished.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EmailSender is satisfied by the SES client wrapper.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// EventPublisher is satisfied by the SNS client wrapper.
type EventPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled  bool
	FromEmail     string
	EventsEnabled bool
	TopicARN      string
}

// JobEvent is the SNS message body published when a job reaches a terminal status.
type JobEvent struct {
	Event         string    `json:"event"`
	JobID         string    `json:"jobId"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	TotalRecords  int       `json:"totalRecords"`
	EnrichedCount int       `json:"enrichedCount"`
	OutputFile    string    `json:"outputFile,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Notifier struct {
	config *Config
	email  EmailSender
	events EventPublisher
	logger logger.Logger
}

// NewNotifier accepts nil senders; the matching channel is then skipped.
func NewNotifier(config *Config, email EmailSender, events EventPublisher, log logger.Logger) *Notifier {
	return &Notifier{
		config: config,
		email:  email,
		events: events,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// JobFinished emails recipient (when given) and publishes a job event. Both
// channels are attempted; failures are returned together.
func (n *Notifier) JobFinished(ctx context.Context, job *models.EnrichmentJob, recipient string) error {
	var errs []error

	if n.config.EmailEnabled && n.email != nil && strings.TrimSpace(recipient) != "" {
		if err := n.sendEmail(ctx, job, recipient); err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("email", err))
		}
	}

	if n.config.EventsEnabled && n.events != nil {
		if err := n.publishEvent(ctx, job); err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("event", err))
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) sendEmail(ctx context.Context, job *models.EnrichmentJob, recipient string) error {
	subject, body := emailContent(job)

	out, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.config.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return err
	}

	n.logger.Info("job summary email sent", map[string]interface{}{
		"jobId":     job.ID,
		"messageId": awssdk.ToString(out.MessageId),
	})
	return nil
}

func (n *Notifier) publishEvent(ctx context.Context, job *models.EnrichmentJob) error {
	event := JobEvent{
		Event:         "enrichment_job." + string(job.Status),
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        string(job.Status),
		TotalRecords:  job.TotalRecords,
		EnrichedCount: job.EnrichedCount,
		OutputFile:    job.OutputFile,
		ErrorMessage:  job.ErrorMessage,
		OccurredAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	out, err := n.events.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.config.TopicARN),
		Message:  awssdk.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(event.Event),
			},
		},
	})
	if err != nil {
		return err
	}

	n.logger.Info("job event published", map[string]interface{}{
		"jobId":     job.ID,
		"messageId": awssdk.ToString(out.MessageId),
	})
	return nil
}

func emailContent(job *models.EnrichmentJob) (string, string) {
	if job.Status == models.JobStatusFailed {
		subject := fmt.Sprintf("Échec de l'enrichissement : %s", job.OriginalFilename)
		body := fmt.Sprintf("L'enrichissement du fichier %s a échoué.\n\nErreur : %s\n", job.OriginalFilename, job.ErrorMessage)
		return subject, body
	}

	subject := fmt.Sprintf("Enrichissement terminé : %s", job.OriginalFilename)
	body := fmt.Sprintf("Le fichier %s a été enrichi.\n\n%d enregistrements sur %d ont été complétés.\n",
		job.OriginalFilename, job.EnrichedCount, job.TotalRecords)
	return subject, body
}
