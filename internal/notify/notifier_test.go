package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmailSender) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: awssdk.String("msg-1")}, nil
}

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("evt-1")}, nil
}

func createCompletedJob() *models.EnrichmentJob {
	return &models.EnrichmentJob{
		ID:               "job-1",
		UserID:           "user-1",
		OriginalFilename: "prospects.csv",
		Status:           models.JobStatusCompleted,
		TotalRecords:     10,
		EnrichedCount:    7,
		OutputFile:       "/data/prospects.enriched.csv",
	}
}

func createConfig() *Config {
	return &Config{
		EmailEnabled:  true,
		FromEmail:     "noreply@leadgen.example",
		EventsEnabled: true,
		TopicARN:      "arn:aws:sns:eu-west-3:123456789012:enrichment-jobs",
	}
}

func TestNotifier_JobFinished(t *testing.T) {
	email := &fakeEmailSender{}
	events := &fakePublisher{}
	n := NewNotifier(createConfig(), email, events, logger.NewTestLogger(t))

	require.NoError(t, n.JobFinished(context.Background(), createCompletedJob(), "sales@client.example"))

	require.Len(t, email.inputs, 1)
	sent := email.inputs[0]
	assert.Equal(t, "noreply@leadgen.example", awssdk.ToString(sent.Source))
	assert.Equal(t, []string{"sales@client.example"}, sent.Destination.ToAddresses)
	assert.Contains(t, awssdk.ToString(sent.Message.Subject.Data), "prospects.csv")
	assert.Contains(t, awssdk.ToString(sent.Message.Body.Text.Data), "7 enregistrements sur 10")

	require.Len(t, events.inputs, 1)
	published := events.inputs[0]
	assert.Equal(t, createConfig().TopicARN, awssdk.ToString(published.TopicArn))
	assert.Equal(t, "enrichment_job.completed", awssdk.ToString(published.MessageAttributes["eventType"].StringValue))

	var event JobEvent
	require.NoError(t, json.Unmarshal([]byte(awssdk.ToString(published.Message)), &event))
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, 7, event.EnrichedCount)
	assert.Equal(t, "completed", event.Status)
}

func TestNotifier_FailedJobEmail(t *testing.T) {
	email := &fakeEmailSender{}
	n := NewNotifier(createConfig(), email, nil, logger.NewTestLogger(t))

	job := createCompletedJob()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = "Uploaded file is empty"

	require.NoError(t, n.JobFinished(context.Background(), job, "sales@client.example"))

	require.Len(t, email.inputs, 1)
	assert.Contains(t, awssdk.ToString(email.inputs[0].Message.Subject.Data), "Échec")
	assert.Contains(t, awssdk.ToString(email.inputs[0].Message.Body.Text.Data), "Uploaded file is empty")
}

func TestNotifier_SkipsDisabledChannels(t *testing.T) {
	email := &fakeEmailSender{}
	events := &fakePublisher{}
	n := NewNotifier(&Config{}, email, events, logger.NewNoOpLogger())

	require.NoError(t, n.JobFinished(context.Background(), createCompletedJob(), "sales@client.example"))

	assert.Empty(t, email.inputs)
	assert.Empty(t, events.inputs)
}

func TestNotifier_NoRecipientSkipsEmail(t *testing.T) {
	email := &fakeEmailSender{}
	events := &fakePublisher{}
	n := NewNotifier(createConfig(), email, events, logger.NewNoOpLogger())

	require.NoError(t, n.JobFinished(context.Background(), createCompletedJob(), " "))

	assert.Empty(t, email.inputs)
	assert.Len(t, events.inputs, 1)
}

func TestNotifier_FailuresAreReported(t *testing.T) {
	email := &fakeEmailSender{err: errors.New("MessageRejected")}
	events := &fakePublisher{err: errors.New("AuthorizationError")}
	n := NewNotifier(createConfig(), email, events, logger.NewTestLogger(t))

	err := n.JobFinished(context.Background(), createCompletedJob(), "sales@client.example")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.Normalize(err).Code)
	assert.Contains(t, err.Error(), "Notification delivery failed")
	assert.Len(t, events.inputs, 1, "event is attempted even when email fails")
}
