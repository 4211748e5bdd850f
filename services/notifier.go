package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// SendGridNotifier emails the order owner after each successful purchase using
// a SendGrid dynamic template. An empty API key turns it into a no-op so local
// runs never need mail credentials.
type SendGridNotifier struct {
	apiKey     string
	templateID string
	fromEmail  string
	baseURL    string
	factory    *shared.HTTPClientFactory
}

func NewSendGridNotifier(apiKey, templateID, fromEmail string, factory *shared.HTTPClientFactory) *SendGridNotifier {
	return &SendGridNotifier{
		apiKey:     apiKey,
		templateID: templateID,
		fromEmail:  fromEmail,
		baseURL:    "https://api.sendgrid.com",
		factory:    factory,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To                  []sendGridAddress `json:"to"`
	DynamicTemplateData map[string]string `json:"dynamic_template_data"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	TemplateID       string                    `json:"template_id"`
}

// NotifyPurchase sends the purchase confirmation email. Returns nil without
// sending when no API key is configured.
func (n *SendGridNotifier) NotifyPurchase(ctx context.Context, order *models.Order, candidate *models.Candidate, amount float64, txHash string) error {
	if n.apiKey == "" {
		logrus.WithField("order_id", order.ID).Debug("Email notifications disabled, skipping purchase notification")
		return nil
	}
	if order.Email == "" {
		return nil
	}

	itemURL := fmt.Sprintf("https://opensea.io/assets/%s/%s", candidate.ContractAddress, candidate.TokenID)

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{
			To: []sendGridAddress{{Email: order.Email, Name: order.Name}},
			DynamicTemplateData: map[string]string{
				"name":      order.Name,
				"wallet":    shortenWallet(order.Wallet),
				"nft_name":  candidate.Name,
				"nft_image": candidate.ImageURL,
				"nft_url":   itemURL,
				"price":     fmt.Sprintf("%.4f %s", amount, candidate.Currency),
				"tx_hash":   txHash,
			},
		}},
		From:       sendGridAddress{Email: n.fromEmail},
		TemplateID: n.templateID,
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+n.apiKey)

	client := n.factory.Client(0)
	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("mail send failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 2048))
		return fmt.Errorf("mail send returned HTTP %d: %s", response.StatusCode, string(body))
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"email":    order.Email,
	}).Info("Purchase notification sent")

	return nil
}

// shortenWallet renders 0x1234...abcd for display in emails.
func shortenWallet(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}
