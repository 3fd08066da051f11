package report

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"minibet/internal/game"
)

// Discord posts an embed per report to a channel webhook.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	return &Discord{session: s, webhookID: id, token: token}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, r game.Report) error {
	params := &discordgo.WebhookParams{
		Username: "minibet",
		Embeds:   []*discordgo.MessageEmbed{reportEmbed(r)},
	}
	if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: %q is not a webhook url", raw)
}

func reportEmbed(r game.Report) *discordgo.MessageEmbed {
	user := "unknown"
	if r.UserID != nil {
		user = fmt.Sprintf("%d", *r.UserID)
	}
	e := &discordgo.MessageEmbed{
		Fields: []*discordgo.MessageEmbedField{{Name: "User", Value: user, Inline: true}},
	}
	switch r.Action {
	case game.ActionPlaceBet:
		e.Title = fmt.Sprintf("Bet %s", r.GameResult)
		e.Color = 0xe74c3c
		if r.GameResult == game.ResultWin {
			e.Color = 0x2ecc71
		}
		coef := "-"
		if r.Coefficient != nil {
			coef = fmt.Sprintf("x%.2f", *r.Coefficient)
		}
		e.Fields = append(e.Fields,
			&discordgo.MessageEmbedField{Name: "Game", Value: fmt.Sprintf("%s / %s", r.GameType, r.BetOption), Inline: true},
			&discordgo.MessageEmbedField{Name: "Stake", Value: fmt.Sprintf("%.2f", r.BetAmount), Inline: true},
			&discordgo.MessageEmbedField{Name: "Coefficient", Value: coef, Inline: true},
		)
	case game.ActionWithdrawalRequest:
		e.Title = "Withdrawal request"
		e.Color = 0xf1c40f
		e.Fields = append(e.Fields,
			&discordgo.MessageEmbedField{Name: "Amount", Value: fmt.Sprintf("%.2f", r.Amount), Inline: true},
			&discordgo.MessageEmbedField{Name: "Wallet", Value: r.WalletAddress},
		)
	default:
		e.Title = r.Action
	}
	return e
}
