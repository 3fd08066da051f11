package cli

import (
	"fmt"
	"net/url"
	"strings"
)

// DepositLink opens the payment bot with the user's id as the start
// parameter.
func DepositLink(depositBot, userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(depositBot, "@"), url.QueryEscape("pay_"+userID))
}

// ReferralLink is the invite link a user shares with friends.
func ReferralLink(botUsername, userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), url.QueryEscape("REF"+userID))
}
