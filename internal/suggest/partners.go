package suggest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// PartnerOffer is a sponsored fallback shown when no catalog item fits.
type PartnerOffer struct {
	Partner string `json:"partner"`
	Text    string `json:"text"`
	URL     string `json:"url,omitempty"`
}

// PartnerOffers maps a topic to its sponsored offer.
type PartnerOffers map[Topic]PartnerOffer

// LoadPartnerOffers reads a JSON object keyed by topic label. An empty path
// yields an empty table.
func LoadPartnerOffers(path string) (PartnerOffers, error) {
	if strings.TrimSpace(path) == "" {
		return PartnerOffers{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suggest: read partner offers: %w", err)
	}
	var raw map[string]PartnerOffer
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("suggest: decode partner offers: %w", err)
	}
	out := make(PartnerOffers, len(raw))
	for label, offer := range raw {
		topic, ok := ParseTopic(label)
		if !ok {
			return nil, fmt.Errorf("suggest: partner offer for unknown topic %q", label)
		}
		if strings.TrimSpace(offer.Partner) == "" || strings.TrimSpace(offer.Text) == "" {
			return nil, fmt.Errorf("suggest: partner offer for %q needs partner and text", label)
		}
		out[topic] = offer
	}
	return out, nil
}

// For returns the offer for topic, if any.
func (p PartnerOffers) For(topic Topic) (PartnerOffer, bool) {
	if topic == "" {
		return PartnerOffer{}, false
	}
	offer, ok := p[topic]
	return offer, ok
}
