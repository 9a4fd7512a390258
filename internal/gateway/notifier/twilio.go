package notifier

import (
	"context"
	"fmt"
	"strings"

	"pricewatch/internal/pkg/text"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxSMSBody is Twilio's limit for a concatenated message body.
const maxSMSBody = 1600

// messageCreator is the slice of the Twilio REST API the SMS channel uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Twilio sends the alert text as an SMS.
type Twilio struct {
	From string
	To   string
	api  messageCreator
}

func NewTwilio(accountSID, authToken, from, to string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{From: from, To: to, api: client.Api}
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) Notify(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.send(alert.Text())
}

func (t *Twilio) send(body string) error {
	if strings.TrimSpace(t.From) == "" || strings.TrimSpace(t.To) == "" || t.api == nil {
		return fmt.Errorf("twilio config incomplete")
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(t.To)
	params.SetFrom(t.From)
	params.SetBody(text.Truncate(body, maxSMSBody-3))
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio send: %s", *resp.ErrorMessage)
	}
	return nil
}
