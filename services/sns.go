package services

import (
	"context"
	"errors"

	"leadreminder-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier sends reminders as transactional SMS through Amazon SNS.
type SNSNotifier struct {
	client    snsPublisher
	senderID  string
	templates MessageTemplates
}

func NewSNSNotifier(ctx context.Context, region, senderID string, templates MessageTemplates) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSNotifier{client: sns.NewFromConfig(cfg), senderID: senderID, templates: templates}, nil
}

func (n *SNSNotifier) Channel(string) string {
	return "sms"
}

func (n *SNSNotifier) Send(ctx context.Context, msg models.Notification) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if n.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(n.senderID),
		}
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(msg.Phone),
		Message:           aws.String(n.templates.Render(msg)),
		MessageAttributes: attrs,
	})
	if err != nil {
		gerr := &GatewayError{Provider: "sns", Err: err}
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			gerr.StatusCode = respErr.HTTPStatusCode()
		}
		return "", gerr
	}
	return aws.ToString(out.MessageId), nil
}
