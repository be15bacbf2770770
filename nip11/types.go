package nip11

import "slices"

// RelayInformationDocument is the JSON document served on the relay's
// HTTP endpoint when the client asks for application/nostr+json.
type RelayInformationDocument struct {
	URL string `json:"-"`

	Name          string `json:"name"`
	Description   string `json:"description"`
	PubKey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	SupportedNIPs []any  `json:"supported_nips"`
	Software      string `json:"software"`
	Version       string `json:"version"`

	Limitation     *RelayLimitationDocument `json:"limitation,omitempty"`
	RelayCountries []string                 `json:"relay_countries,omitempty"`
	LanguageTags   []string                 `json:"language_tags,omitempty"`
	Tags           []string                 `json:"tags,omitempty"`
	PostingPolicy  string                   `json:"posting_policy,omitempty"`
	PaymentsURL    string                   `json:"payments_url,omitempty"`
	Icon           string                   `json:"icon,omitempty"`
	Banner         string                   `json:"banner,omitempty"`
}

type RelayLimitationDocument struct {
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MaxSubidLength   int  `json:"max_subid_length,omitempty"`
	MaxEventTags     int  `json:"max_event_tags,omitempty"`
	MaxContentLength int  `json:"max_content_length,omitempty"`
	MinPowDifficulty int  `json:"min_pow_difficulty,omitempty"`
	AuthRequired     bool `json:"auth_required"`
	PaymentRequired  bool `json:"payment_required"`
	RestrictedWrites bool `json:"restricted_writes"`
	CreatedAtLower   int  `json:"created_at_lower_limit,omitempty"`
	CreatedAtUpper   int  `json:"created_at_upper_limit,omitempty"`
}

// AddSupportedNIP appends the number if it isn't already listed.
func (info *RelayInformationDocument) AddSupportedNIP(number int) {
	if slices.ContainsFunc(info.SupportedNIPs, func(n any) bool { return n == any(number) }) {
		return
	}
	info.SupportedNIPs = append(info.SupportedNIPs, number)
}
