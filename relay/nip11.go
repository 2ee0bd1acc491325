package relay

import (
	"net/http"
	"slices"
	"strings"

	"github.com/mailru/easyjson/jwriter"
)

type RelayInformationDocument struct {
	URL           string `json:"self,omitempty"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PubKey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	SupportedNIPs []any  `json:"supported_nips"`
	Software      string `json:"software"`
	Version       string `json:"version"`

	Limitation *RelayLimitationDocument `json:"limitation,omitempty"`
	Icon       string                   `json:"icon,omitempty"`
	Banner     string                   `json:"banner,omitempty"`
}

type RelayLimitationDocument struct {
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MaxEventTags     int  `json:"max_event_tags,omitempty"`
	MaxContentLength int  `json:"max_content_length,omitempty"`
	AuthRequired     bool `json:"auth_required"`
	PaymentRequired  bool `json:"payment_required"`
	RestrictedWrites bool `json:"restricted_writes"`
}

func (info *RelayInformationDocument) AddSupportedNIP(number int) {
	idx := slices.IndexFunc(info.SupportedNIPs, func(n any) bool { return n == number })
	if idx != -1 {
		return
	}
	info.SupportedNIPs = append(info.SupportedNIPs, number)
}

func (info RelayInformationDocument) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"name":`)
	w.String(info.Name)
	w.RawString(`,"description":`)
	w.String(info.Description)
	if info.URL != "" {
		w.RawString(`,"self":`)
		w.String(info.URL)
	}
	if info.PubKey != "" {
		w.RawString(`,"pubkey":`)
		w.String(info.PubKey)
	}
	if info.Contact != "" {
		w.RawString(`,"contact":`)
		w.String(info.Contact)
	}
	w.RawString(`,"supported_nips":[`)
	for i, n := range info.SupportedNIPs {
		if i > 0 {
			w.RawByte(',')
		}
		switch v := n.(type) {
		case int:
			w.Int(v)
		case string:
			w.String(v)
		}
	}
	w.RawString(`],"software":`)
	w.String(info.Software)
	w.RawString(`,"version":`)
	w.String(info.Version)
	if info.Icon != "" {
		w.RawString(`,"icon":`)
		w.String(info.Icon)
	}
	if info.Banner != "" {
		w.RawString(`,"banner":`)
		w.String(info.Banner)
	}
	if l := info.Limitation; l != nil {
		w.RawString(`,"limitation":{"max_message_length":`)
		w.Int(l.MaxMessageLength)
		w.RawString(`,"max_subscriptions":`)
		w.Int(l.MaxSubscriptions)
		w.RawString(`,"max_limit":`)
		w.Int(l.MaxLimit)
		w.RawString(`,"max_event_tags":`)
		w.Int(l.MaxEventTags)
		w.RawString(`,"max_content_length":`)
		w.Int(l.MaxContentLength)
		w.RawString(`,"auth_required":`)
		w.Bool(l.AuthRequired)
		w.RawString(`,"payment_required":`)
		w.Bool(l.PaymentRequired)
		w.RawString(`,"restricted_writes":`)
		w.Bool(l.RestrictedWrites)
		w.RawByte('}')
	}
	w.RawByte('}')
}

func (rl *Relay) HandleNIP11(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/nostr+json")

	info := *rl.Info
	info.SupportedNIPs = slices.Clone(info.SupportedNIPs)

	if rl.MaxLimit > 0 {
		limitation := RelayLimitationDocument{}
		if info.Limitation != nil {
			limitation = *info.Limitation
		}
		limitation.MaxLimit = rl.MaxLimit
		limitation.MaxMessageLength = int(rl.MaxMessageSize)
		info.Limitation = &limitation
	}

	// resolve relative icon and banner URLs against base URL
	baseURL := rl.getBaseURL(r)
	if info.Icon != "" && !strings.HasPrefix(info.Icon, "http://") && !strings.HasPrefix(info.Icon, "https://") {
		info.Icon = strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(info.Icon, "/")
	}
	if info.Banner != "" && !strings.HasPrefix(info.Banner, "http://") && !strings.HasPrefix(info.Banner, "https://") {
		info.Banner = strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(info.Banner, "/")
	}

	jw := jwriter.Writer{NoEscapeHTML: true}
	info.MarshalEasyJSON(&jw)
	jw.DumpTo(w)
}
