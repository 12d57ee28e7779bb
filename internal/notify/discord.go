// Package notify delivers candidate shortlists to a Discord webhook.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	appconfig "auctionflow/config"
	"auctionflow/logger"
	"auctionflow/models"
)

const copperPerGold = 10000

// Discord posts one message per run to a webhook URL. Delivery is
// all-or-nothing and never retried here: a failed run simply leaves its
// candidates unannounced, so the next run picks them up again.
type Discord struct {
	client  *resty.Client
	limiter *rate.Limiter
	url     string
	log     *logger.Entry
}

func NewDiscord(cfg appconfig.NotifierConfig, log *logger.Log) *Discord {
	client := resty.New()
	client.SetTimeout(15 * time.Second)

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Discord{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		url:     cfg.WebhookURL,
		log:     log.WithComponent("notify"),
	}
}

// Enabled reports whether a webhook URL is configured.
func (d *Discord) Enabled() bool {
	return d.url != ""
}

// Deliver posts the shortlist. Returns an error on any non-2xx status; the
// caller must only mark candidates announced when Deliver returns nil.
func (d *Discord) Deliver(ctx context.Context, candidates []models.CandidateRecord) error {
	if len(candidates) == 0 {
		return nil
	}
	if !d.Enabled() {
		return fmt.Errorf("no webhook url configured")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"content": formatMessage(candidates)}).
		Post(d.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook rejected delivery: status %d", resp.StatusCode())
	}

	d.log.WithFields(logger.Fields{"candidates": len(candidates), "status": resp.StatusCode()}).Info("shortlist delivered")
	d.log.LogMetric("notify", "candidates_delivered", len(candidates), "counter", nil)
	return nil
}

func formatMessage(candidates []models.CandidateRecord) string {
	var b strings.Builder
	b.WriteString("**Cheap Auction Alert!**\n")
	for _, c := range candidates {
		name := c.ItemName
		if name == "" {
			name = fmt.Sprintf("Item %d", c.ItemID)
		}
		fmt.Fprintf(&b, "- %s", name)
		if c.Variant != "" {
			fmt.Fprintf(&b, " [%s]", c.Variant)
		}
		fmt.Fprintf(&b, ": realm %s, %s vs avg %s (%.0f%% off), auction %d\n",
			c.Realm, formatGold(c.Buyout), formatGold(int64(c.HistoricalAvg)), c.SavingsPct, c.AuctionID)
	}
	return b.String()
}

func formatGold(copper int64) string {
	return fmt.Sprintf("%dg", copper/copperPerGold)
}
