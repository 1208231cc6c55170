package ses

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	consoleURL  string
}

// NewSESSender creates a new SES-backed EmailSender. consoleURL is the
// base URL used to build a link back to the run's detail page.
func NewSESSender(region, fromAddress, fromName, consoleURL string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		consoleURL:  consoleURL,
	}, nil
}

func (s *sesSender) SendRunCompletionEmail(ctx context.Context, toEmail, toName string, run *domain.MatchRun, outcomes []domain.BillOutcome) error {
	runURL := fmt.Sprintf("%s/batch-matches/%s", s.consoleURL, run.ID)
	subject := fmt.Sprintf("Batch match %s finished: %d succeeded, %d failed", run.ID, run.SuccessCount, run.FailureCount)
	htmlBody := buildCompletionHTML(toName, run, outcomes, runURL)
	textBody := buildCompletionText(toName, run, runURL)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildCompletionText(name string, run *domain.MatchRun, runURL string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nBatch match %s has finished.\n\nSucceeded: %d\nFailed: %d\nTotal shortfall: %s\n\nDetails: %s\n\nRed-Blue Matcher",
		name, run.ID, run.SuccessCount, run.FailureCount, run.ShortfallTotal.String(), runURL)
}

func buildCompletionHTML(name string, run *domain.MatchRun, outcomes []domain.BillOutcome, runURL string) string {
	var rows strings.Builder
	for _, o := range outcomes {
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			o.BillID, o.Status, o.MatchedAmount.String(), o.ShortfallAmount.String()))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Batch match finished</h2>
  <p>Hi %s,</p>
  <p>Run <strong>%s</strong> finished with %d bill(s) succeeded and %d failed. Total shortfall: %s.</p>
  <table style="border-collapse: collapse; width: 100%%;" border="1" cellpadding="6">
    <tr><th>Bill</th><th>Status</th><th>Matched</th><th>Shortfall</th></tr>
    %s
  </table>
  <p style="margin-top: 20px;"><a href="%s">View run details</a></p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Red-Blue Matcher</p>
</body>
</html>`, name, run.ID, run.SuccessCount, run.FailureCount, run.ShortfallTotal.String(), rows.String(), runURL)
}
