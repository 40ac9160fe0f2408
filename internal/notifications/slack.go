package notifications

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/audit"
	"github.com/Harvey-AU/seo-audit/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// SlackNotifier posts a summary of each finished site audit to a Slack
// incoming webhook. A notifier with no webhook URL does nothing.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for webhookURL
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured
func (n *SlackNotifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

// NotifySiteAudit delivers the summary of res. Delivery failures are
// logged rather than returned so a broken webhook never fails an audit.
func (n *SlackNotifier) NotifySiteAudit(ctx context.Context, res *audit.WebsiteAuditResult) {
	if !n.Enabled() || res == nil {
		return
	}

	msg := &slack.WebhookMessage{
		Text:   summaryText(res),
		Blocks: &slack.Blocks{BlockSet: buildSiteAuditBlocks(res)},
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, msg); err != nil {
		log.Warn().
			Err(err).
			Str("site", res.URL).
			Msg("Failed to send Slack site audit summary")
		return
	}

	log.Info().
		Str("site", res.URL).
		Int("pages", len(res.Pages)).
		Msg("Slack site audit summary sent")
}

func summaryText(res *audit.WebsiteAuditResult) string {
	domain := util.NormaliseDomain(res.URL)
	if !res.HasSitemap {
		return fmt.Sprintf("SEO audit of %s: no sitemap found", domain)
	}
	return fmt.Sprintf("SEO audit of %s: %d pages, average score %.1f%%", domain, len(res.Pages), res.AvgScorePercent)
}

func buildSiteAuditBlocks(res *audit.WebsiteAuditResult) []slack.Block {
	var emoji string
	switch {
	case !res.HasSitemap:
		emoji = ":grey_question:"
	case res.AvgScorePercent >= 80:
		emoji = ":white_check_mark:"
	case res.AvgScorePercent >= 50:
		emoji = ":warning:"
	default:
		emoji = ":x:"
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("%s *%s*", emoji, summaryText(res)), false, false),
			nil,
			nil,
		),
	}

	if !res.HasSitemap {
		return blocks
	}

	var dupTitles, dupHeadings, dupMeta int
	for _, p := range res.Pages {
		if p.DuplicateTitle {
			dupTitles++
		}
		if p.DuplicateHeading {
			dupHeadings++
		}
		if p.DuplicateMeta {
			dupMeta++
		}
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Duplicate titles*\n%d", dupTitles), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Duplicate headings*\n%d", dupHeadings), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Duplicate meta descriptions*\n%d", dupMeta), false, false),
	}
	blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))

	if res.Partial {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn", ":hourglass: The audit stopped early, results are partial", false, false),
		))
	}

	return blocks
}
