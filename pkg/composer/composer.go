// Package composer renders notification decisions into channel and language
// specific message text. Lookup failures always resolve through a fallback
// chain, a notification is never lost to a missing template.
package composer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/model"
)

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

type Composer struct {
	config config.ComposerConfig
}

func New(cfg config.ComposerConfig) *Composer {
	return &Composer{config: cfg}
}

// Render produces the message body for one template kind, channel and
// language. Unknown languages fall back to the default language; unknown
// kinds fall back to the generic template. Placeholders with no matching
// variable are removed rather than left literal.
func (c *Composer) Render(kind TemplateKind, channel model.NotificationChannel, language string, variables map[string]string) string {
	text := c.lookup(kind, language)

	for name, value := range variables {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}

	text = placeholderRegex.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	if eta, err := strconv.Atoi(variables["eta_minutes"]); err == nil && eta <= c.config.UrgencyThresholdMinutes {
		text = urgencyPrefix(channel) + text
	}

	return c.formatForChannel(text, channel)
}

func (c *Composer) lookup(kind TemplateKind, language string) string {
	variants, known := templates[kind]
	if !known {
		variants = templates[TemplateKindGeneric]
	}

	if text, exists := variants[language]; exists {
		return text
	}

	return variants[c.config.DefaultLanguage]
}

func urgencyPrefix(channel model.NotificationChannel) string {
	switch channel {
	case model.NotificationChannelVoice:
		return "Attention. "
	case model.NotificationChannelWhatsApp:
		return "*URGENT* "
	default:
		return "URGENT: "
	}
}

// formatForChannel applies per-channel phrasing. Voice output is spoken by a
// TTS engine so markup is stripped and the text is turned into a sentence.
func (c *Composer) formatForChannel(text string, channel model.NotificationChannel) string {
	switch channel {
	case model.NotificationChannelWhatsApp:
		return text
	case model.NotificationChannelVoice:
		text = strings.ReplaceAll(text, "*", "")
		text = strings.ReplaceAll(text, " min", " minutes")
		if !strings.HasSuffix(text, ".") {
			text += "."
		}
		return text
	default:
		return strings.ReplaceAll(text, "*", "")
	}
}

// RenderDecision builds the outbound message for a fired trigger.
func (c *Composer) RenderDecision(decision TriggerDecision) model.NotificationMessage {
	vehicleID := decision.VehicleID
	stopName := decision.StopName

	// rich channels get the identifying fields emphasised
	if decision.Channel == model.NotificationChannelWhatsApp {
		vehicleID = "*" + vehicleID + "*"
		stopName = "*" + stopName + "*"
	}

	variables := map[string]string{
		"vehicle_id":  vehicleID,
		"stop_name":   stopName,
		"eta_minutes": fmt.Sprint(decision.ETAMinutes),
		"summary":     fmt.Sprintf("Bus %s near %s", decision.VehicleID, decision.StopName),
	}

	body := c.Render(TemplateKindArrival, decision.Channel, decision.Language, variables)

	return model.NotificationMessage{
		Channel:         decision.Channel,
		Body:            body,
		Recipient:       decision.Recipient,
		SubscriptionRef: decision.SubscriptionRef,
		VehicleID:       decision.VehicleID,
		StopRef:         decision.StopRef,
	}
}

// TriggerDecision is the flattened view of a fired trigger the composer
// renders from.
type TriggerDecision struct {
	VehicleID string
	StopRef   string
	StopName  string

	ETAMinutes int

	SubscriptionRef string
	Recipient       string
	Channel         model.NotificationChannel
	Language        string
}
