// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// All subscribes a handler to every event type.
	All EventType = "*"

	AssetCreated       EventType = "asset.created"
	PurchaseCompleted  EventType = "purchase.completed"
	SaleCompleted      EventType = "sale.completed"
	MigrationCompleted EventType = "migration.completed"
	PlatformConfigured EventType = "platform.configured"
	FeesWithdrawn      EventType = "fees.withdrawn"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	EventTime time.Time `json:"timestamp"`
}

// NewBase stamps an event header.
func NewBase(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: at.UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// AssetCreatedEvent is emitted after a launch commits.
type AssetCreatedEvent struct {
	BaseEvent
	Creator      solana.PublicKey `json:"creator"`
	ListingFee   uint64           `json:"listing_fee"`
	InitialPrice uint64           `json:"initial_price"`
	Sale         domain.AssetSale `json:"sale"`
}

// PurchaseCompletedEvent is emitted after a buy commits.
type PurchaseCompletedEvent struct {
	BaseEvent
	Buyer        solana.PublicKey `json:"buyer"`
	Amount       uint64           `json:"amount"`
	BaseCost     uint64           `json:"base_cost"`
	TradingFee   uint64           `json:"trading_fee"`
	TotalCost    uint64           `json:"total_cost"`
	CurrentPrice uint64           `json:"current_price"`
	Sale         domain.AssetSale `json:"sale"`
}

// SaleCompletedEvent is emitted after a sell commits.
type SaleCompletedEvent struct {
	BaseEvent
	Seller       solana.PublicKey `json:"seller"`
	Amount       uint64           `json:"amount"`
	BaseProceeds uint64           `json:"base_proceeds"`
	TradingFee   uint64           `json:"trading_fee"`
	NetProceeds  uint64           `json:"net_proceeds"`
	CurrentPrice uint64           `json:"current_price"`
	Sale         domain.AssetSale `json:"sale"`
}

// MigrationCompletedEvent is emitted after liquidity moved to the external pool.
type MigrationCompletedEvent struct {
	BaseEvent
	Caller       solana.PublicKey `json:"caller"`
	Pool         solana.PublicKey `json:"pool"`
	LPMint       solana.PublicKey `json:"lp_mint"`
	LPAmount     uint64           `json:"lp_amount"`
	TokenDeposit uint64           `json:"token_deposit"`
	FundsDeposit uint64           `json:"funds_deposit"`
	MigrationFee uint64           `json:"migration_fee"`
	Sale         domain.AssetSale `json:"sale"`
}

// PlatformConfiguredEvent is emitted after initialize or configure.
type PlatformConfiguredEvent struct {
	BaseEvent
	Admin    solana.PublicKey      `json:"admin"`
	Platform domain.PlatformConfig `json:"platform"`
}

// FeesWithdrawnEvent is emitted after the admin drains treasury fees.
type FeesWithdrawnEvent struct {
	BaseEvent
	Admin       solana.PublicKey `json:"admin"`
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
}

// MintOf returns the asset mint an event refers to, if any.
func MintOf(e Event) (solana.PublicKey, bool) {
	switch ev := e.(type) {
	case *AssetCreatedEvent:
		return ev.Sale.Mint, true
	case *PurchaseCompletedEvent:
		return ev.Sale.Mint, true
	case *SaleCompletedEvent:
		return ev.Sale.Mint, true
	case *MigrationCompletedEvent:
		return ev.Sale.Mint, true
	default:
		return solana.PublicKey{}, false
	}
}
