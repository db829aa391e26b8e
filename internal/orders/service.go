package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

type orderStore interface {
	Create(ctx context.Context, order *Order) (*Order, error)
}

type stockDecrementer interface {
	DecrementStock(ctx context.Context, shopID, id string, qty int) error
}

// Service turns an extraction draft into a persisted order plus stock
// decrement. The two writes are not transactional; the conditional
// decrement runs first so a lost race surfaces as ErrInsufficientStock
// before any order row exists.
type Service struct {
	store  orderStore
	stock  stockDecrementer
	logger *logging.Logger
}

// NewService wires the order store and catalog together.
func NewService(store orderStore, stock stockDecrementer, logger *logging.Logger) *Service {
	if store == nil {
		panic("orders: store required")
	}
	if stock == nil {
		panic("orders: stock decrementer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, stock: stock, logger: logger}
}

// CreateFromDraft commits a draft produced by Evaluate. The channel is
// the one the conversation turn arrived on.
func (s *Service) CreateFromDraft(ctx context.Context, shopID, conversationID, channel string, draft *Draft) (*Order, error) {
	if draft == nil {
		return nil, fmt.Errorf("orders: draft is required")
	}

	if err := s.stock.DecrementStock(ctx, shopID, draft.Product.ID, draft.Quantity); err != nil {
		if errors.Is(err, catalog.ErrInsufficientStock) {
			return nil, fmt.Errorf("orders: stock changed before commit for %q: %w", draft.Product.Name, err)
		}
		return nil, fmt.Errorf("orders: decrement stock: %w", err)
	}

	order := &Order{
		ShopID:          shopID,
		ConversationID:  conversationID,
		ProductID:       draft.Product.ID,
		ProductName:     draft.Product.Name,
		CustomerName:    draft.CustomerName,
		CustomerContact: draft.CustomerContact,
		Channel:         channel,
		Quantity:        draft.Quantity,
		UnitPrice:       draft.UnitPrice,
		UnitCost:        draft.UnitCost,
		Revenue:         draft.Revenue,
		Profit:          draft.Profit,
		Status:          StatusPending,
	}

	created, err := s.store.Create(ctx, order)
	if err != nil {
		// Stock is already decremented at this point. The turn must not
		// fail the customer, so the caller logs and moves on.
		s.logger.Error("order insert failed after stock decrement",
			"shop_id", shopID,
			"product_id", draft.Product.ID,
			"quantity", draft.Quantity,
			"error", err,
		)
		return nil, err
	}
	return created, nil
}
