package utils

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	resty "github.com/go-resty/resty/v2"
)

const (
	AlertNotification = 0
	InfoNotification  = 1
)

type SlackRequestBody struct {
	Text string `json:"text"`
}

var slackClient = resty.New().SetTimeout(10 * time.Second)

var (
	webhookMu       sync.RWMutex
	alertWebhookURL string
	infoWebhookURL  string
)

// SetSlackWebhookURLs sets the webhooks used by SendSlackNotification. An empty
// url falls back to the ALERT_WEBHOOK_URL or INFO_WEBHOOK_URL environment variable.
func SetSlackWebhookURLs(alertURL string, infoURL string) {
	webhookMu.Lock()
	defer webhookMu.Unlock()
	alertWebhookURL = alertURL
	infoWebhookURL = infoURL
}

func webhookURLs() (string, string) {
	webhookMu.RLock()
	defer webhookMu.RUnlock()
	alertURL, infoURL := alertWebhookURL, infoWebhookURL
	if alertURL == "" {
		alertURL = os.Getenv("ALERT_WEBHOOK_URL")
	}
	if infoURL == "" {
		infoURL = os.Getenv("INFO_WEBHOOK_URL")
	}
	return alertURL, infoURL
}

// SendSlackNotification will post to an 'Incoming Webook' url setup in Slack Apps. It accepts
// some text and the slack channel is saved within Slack. Nothing is sent when the webhook
// for notiType is not configured.
func SendSlackNotification(msg string, notiType int) error {
	var webhookURL string
	alertURL, infoURL := webhookURLs()
	if notiType == AlertNotification {
		webhookURL = alertURL
	} else if notiType == InfoNotification {
		webhookURL = infoURL
	} else {
		return errors.New("Notification type is not supported")
	}
	if webhookURL == "" {
		return nil
	}
	return PostSlackMessage(webhookURL, msg)
}

func PostSlackMessage(webhookURL string, msg string) error {
	response, err := slackClient.R().
		SetHeader("Content-Type", "application/json").
		SetBody(SlackRequestBody{Text: msg}).
		Post(webhookURL)
	if err != nil {
		return err
	}
	if response.StatusCode() != 200 {
		return fmt.Errorf("Response status code: %v", response.StatusCode())
	}
	if response.String() != "ok" {
		return errors.New("Non-ok response returned from Slack")
	}
	return nil
}
