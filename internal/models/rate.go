package models

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Префиксы доменных событий внутри messages.content.
// Клиенты отличают событие от обычного текста простой проверкой префикса.
const (
	RateEventPrefix = "__RATE_EVENT__"
	DealEventPrefix = "__DEAL_EVENT__"
)

// Виды событий переговоров о цене
const (
	RateKindProposed = "rate_proposed"
	RateKindAccepted = "rate_accepted"
	RateKindRejected = "rate_rejected"
	DealKindSold     = "sold"
)

// RateEvent представляет событие переговоров о цене внутри чата
type RateEvent struct {
	Kind       string  `json:"kind"`
	ProposalID string  `json:"proposalId"`
	Amount     float64 `json:"amount,omitempty"`
}

// DealEvent представляет терминальное событие закрытия сделки
type DealEvent struct {
	Kind      string    `json:"kind"`
	BuyerID   uuid.UUID `json:"buyerId"`
	SellerID  uuid.UUID `json:"sellerId"`
	ListingID uuid.UUID `json:"listingId"`
	Amount    int64     `json:"amount"`
}

// EncodeRateEvent сериализует событие в содержимое сообщения
func EncodeRateEvent(ev RateEvent) string {
	data, _ := json.Marshal(ev)
	return RateEventPrefix + string(data)
}

// ParseRateEvent пытается распознать событие переговоров в содержимом сообщения.
// Некорректный JSON после префикса трактуется как обычный текст.
func ParseRateEvent(content string) (RateEvent, bool) {
	if !strings.HasPrefix(content, RateEventPrefix) {
		return RateEvent{}, false
	}

	var ev RateEvent
	if err := json.Unmarshal([]byte(content[len(RateEventPrefix):]), &ev); err != nil {
		return RateEvent{}, false
	}

	if ev.Kind == "" || ev.ProposalID == "" {
		return RateEvent{}, false
	}

	return ev, true
}

// EncodeDealEvent сериализует событие закрытия сделки
func EncodeDealEvent(ev DealEvent) string {
	data, _ := json.Marshal(ev)
	return DealEventPrefix + string(data)
}

// ParseDealEvent пытается распознать событие закрытия сделки
func ParseDealEvent(content string) (DealEvent, bool) {
	if !strings.HasPrefix(content, DealEventPrefix) {
		return DealEvent{}, false
	}

	var ev DealEvent
	if err := json.Unmarshal([]byte(content[len(DealEventPrefix):]), &ev); err != nil {
		return DealEvent{}, false
	}

	if ev.Kind == "" {
		return DealEvent{}, false
	}

	return ev, true
}

// IsTerminalRateKind сообщает, является ли событие разрешением предложения
func IsTerminalRateKind(kind string) bool {
	return kind == RateKindAccepted || kind == RateKindRejected
}
