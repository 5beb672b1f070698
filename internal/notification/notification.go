package notification

import (
	"encoding/json"
	"fmt"
)

const (
	// ButtonCopy renders a copy-to-clipboard affordance.
	ButtonCopy = "cta_copy"
	// ButtonURL renders a visit-link affordance.
	ButtonURL = "cta_url"
)

// Button is a native-flow action attached to an interactive message.
type Button struct {
	Name   string
	Params json.RawMessage
}

// Interactive describes a rich message with header, body, footer and actions.
type Interactive struct {
	Title    string
	Subtitle string
	Body     string
	Footer   string
	Buttons  []Button
}

// OTPTemplate holds the branding used when rendering a one-time code message.
type OTPTemplate struct {
	Title    string
	Subtitle string
	Footer   string
	SiteURL  string
}

// DefaultOTPTemplate returns the stock header and footer for OTP messages.
func DefaultOTPTemplate(siteURL string) OTPTemplate {
	return OTPTemplate{
		Title:    "OTP Verification",
		Subtitle: "> OTP-MD",
		Footer:   "OTP-MD Gateway",
		SiteURL:  siteURL,
	}
}

type copyParams struct {
	DisplayText string `json:"display_text"`
	ID          string `json:"id"`
	CopyCode    string `json:"copy_code"`
}

type urlParams struct {
	DisplayText string `json:"display_text"`
	URL         string `json:"url"`
	MerchantURL string `json:"merchant_url"`
}

// OTP renders the interactive message carrying code with copy and visit buttons.
func (t OTPTemplate) OTP(code string) (Interactive, error) {
	copyBtn, err := json.Marshal(copyParams{DisplayText: "Copy OTP", ID: "copy_otp_" + code, CopyCode: code})
	if err != nil {
		return Interactive{}, err
	}
	urlBtn, err := json.Marshal(urlParams{DisplayText: "Visit Site", URL: t.SiteURL, MerchantURL: t.SiteURL})
	if err != nil {
		return Interactive{}, err
	}

	return Interactive{
		Title:    t.Title,
		Subtitle: t.Subtitle,
		Body:     fmt.Sprintf("Your OTP is *%s*. Please use it to verify your identity.\n\nVisit our site: %s", code, t.SiteURL),
		Footer:   t.Footer,
		Buttons: []Button{
			{Name: ButtonCopy, Params: copyBtn},
			{Name: ButtonURL, Params: urlBtn},
		},
	}, nil
}
