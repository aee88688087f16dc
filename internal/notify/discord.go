package notify

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Embed colours by alert family.
const (
	colorInfo        = 0x3498db
	colorArbitration = 0xe67e22
	colorSettled     = 0x2ecc71
)

// Discord caps an embed at 25 fields.
const maxEmbedFields = 25

// DiscordSender posts alerts to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts one embed. "key: value" lines of message become embed fields;
// anything else lands in the description.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	embed := discordEmbed{
		Title:     title,
		Color:     embedColor(title),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var desc []string
	for _, ln := range strings.Split(message, "\n") {
		k, v, ok := strings.Cut(ln, ": ")
		if !ok || strings.ContainsRune(k, ' ') || len(embed.Fields) == maxEmbedFields {
			if ln != "" {
				desc = append(desc, ln)
			}
			continue
		}
		embed.Fields = append(embed.Fields, discordField{Name: k, Value: v, Inline: len(v) <= 24})
	}
	embed.Description = strings.Join(desc, "\n")

	return postJSON(ctx, d.client, "discord", d.webhookURL, discordMessage{
		Username: "realityarb",
		Embeds:   []discordEmbed{embed},
	})
}

func embedColor(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "arbitration"):
		return colorArbitration
	case strings.Contains(t, "finalized"), strings.Contains(t, "claimed"):
		return colorSettled
	default:
		return colorInfo
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
