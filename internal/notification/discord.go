package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itss-sierra/islas-calor/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// Discord posts embeds to one webhook. An empty URL disables it.
type Discord struct {
	URL    string
	Client *http.Client
}

func (d Discord) Send(embed DiscordEmbed) error {
	if d.URL == "" {
		return nil
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := client.Post(d.URL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

func ErrorEmbed(errorMessage string) DiscordEmbed {
	return DiscordEmbed{
		Title:       "🚨 Islas de Calor: error",
		Description: fmt.Sprintf("Ocurrió un error en el tablero:\n\n%s", errorMessage),
		Color:       colorRed,
	}
}

func SuccessEmbed(successMessage string) DiscordEmbed {
	return DiscordEmbed{
		Title:       "✅ Islas de Calor",
		Description: successMessage,
		Color:       colorGreen,
	}
}

func SendDiscordErrorNotification(errorMessage string) error {
	return Discord{URL: properties.DiscordErrorNotificationUrl()}.Send(ErrorEmbed(errorMessage))
}

func SendDiscordSuccessNotification(successMessage string) error {
	return Discord{URL: properties.DiscordSuccessNotificationUrl()}.Send(SuccessEmbed(successMessage))
}
