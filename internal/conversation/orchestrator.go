package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/intent"
	"github.com/tajirhq/tajir-ai-platform/internal/notify"
	"github.com/tajirhq/tajir-ai-platform/internal/observability/metrics"
	"github.com/tajirhq/tajir-ai-platform/internal/orders"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

var turnTracer = otel.Tracer("tajir/conversation/orchestrator")

const (
	// defaultHistoryWindow bounds how many stored turns feed the prompt.
	defaultHistoryWindow = 20

	// defaultRecentWindow bounds how many customer turns the order
	// heuristic scans, counting the current one.
	defaultRecentWindow = 3

	// defaultSendTimeout caps one outbound provider call.
	defaultSendTimeout = 15 * time.Second
)

// Skip reasons reported on the webhook path when a turn ends without a reply.
const (
	SkipEmptyText = "empty_text"
	SkipPaused    = "paused"
	SkipSuspended = "suspended"
)

// ErrShopSuspended rejects dashboard sends for shops whose subscription
// has lapsed. Webhook traffic for such shops is dropped silently.
var ErrShopSuspended = errors.New("conversation: shop suspended")

// InboundRequest is one normalized customer message, produced by a channel
// adapter or the webchat handler and carried through the queue to the
// orchestrator. It must round-trip through JSON.
type InboundRequest struct {
	ShopID             string    `json:"shop_id"`
	Channel            string    `json:"channel"`
	ExternalCustomerID string    `json:"external_customer_id"`
	CustomerName       string    `json:"customer_name,omitempty"`
	Text               string    `json:"text"`
	ProviderMessageID  string    `json:"provider_message_id,omitempty"`
	ReceivedAt         time.Time `json:"received_at,omitempty"`
}

// TurnResult reports what one inbound turn produced. Reply and Order are
// nil when the turn stopped early; Skipped carries the reason.
type TurnResult struct {
	Conversation *Conversation
	Inbound      *StoredMessage
	Reply        *StoredMessage
	Intent       intent.Result
	Order        *orders.Order
	Skipped      string
}

// Consumer-side views of the collaborating stores. Tests substitute fakes;
// production wires the concrete types.
type turnStore interface {
	FindCurrent(ctx context.Context, shopID, externalCustomerID string) (*Conversation, error)
	GetByID(ctx context.Context, shopID, id string) (*Conversation, error)
	Create(ctx context.Context, shopID, channel, externalCustomerID, customerName string) (*Conversation, error)
	List(ctx context.Context, shopID string, states []string, limit int) ([]Conversation, error)
	UpdateState(ctx context.Context, shopID, id, state string, pausedForHuman bool) error
	UpdateCustomerName(ctx context.Context, id, name string) error
	AppendMessage(ctx context.Context, msg *StoredMessage) (*StoredMessage, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error)
}

type shopDirectory interface {
	GetByID(ctx context.Context, id string) (*shops.Shop, error)
}

type catalogSource interface {
	ActiveProducts(ctx context.Context, shopID string) ([]catalog.Product, error)
	ActiveServices(ctx context.Context, shopID string) ([]catalog.Service, error)
}

type replyGenerator interface {
	Generate(ctx context.Context, in GenerationInput) string
}

type orderPlacer interface {
	CreateFromDraft(ctx context.Context, shopID, conversationID, channel string, draft *orders.Draft) (*orders.Order, error)
}

// transcriptArchiver exports a closed conversation's transcript. The
// archive package implements it; a nil archiver disables export.
type transcriptArchiver interface {
	Enabled() bool
	ArchiveConversation(ctx context.Context, conv *Conversation, messages []StoredMessage) error
}

// handoffNotifier tells the shop owner a customer is waiting for a
// person. The notify service implements it; nil disables the email.
type handoffNotifier interface {
	SendHandoffNotice(ctx context.Context, shop *shops.Shop, notice notify.HandoffNotice) error
}

// Orchestrator drives one message turn end to end: persistence, intent,
// reply generation, order extraction, events and outbound delivery. It is
// safe for concurrent use; per-conversation ordering is the queue's job.
type Orchestrator struct {
	store     turnStore
	shops     shopDirectory
	catalog   catalogSource
	generator replyGenerator
	orders    orderPlacer
	publisher events.Publisher
	logger    *logging.Logger

	senders        *channels.Registry
	history        *HistoryStore
	archiver       transcriptArchiver
	handoffNotices handoffNotifier
	metrics        *metrics.EngineMetrics
	historyWindow  int
	recentWindow   int
	sendTimeout    time.Duration
}

// OrchestratorOption customizes optional collaborators and tunables.
type OrchestratorOption func(*Orchestrator)

// WithSenders wires the outbound channel registry. Without it the engine
// persists replies but never calls a provider.
func WithSenders(registry *channels.Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.senders = registry }
}

// WithHistoryCache wires the Redis-backed prompt history cache.
func WithHistoryCache(store *HistoryStore) OrchestratorOption {
	return func(o *Orchestrator) { o.history = store }
}

// WithArchiver wires transcript export on archive.
func WithArchiver(archiver transcriptArchiver) OrchestratorOption {
	return func(o *Orchestrator) { o.archiver = archiver }
}

// WithHandoffNotices wires the owner email sent when a customer asks
// for a person.
func WithHandoffNotices(n handoffNotifier) OrchestratorOption {
	return func(o *Orchestrator) { o.handoffNotices = n }
}

// WithEngineMetrics wires the Prometheus counters.
func WithEngineMetrics(m *metrics.EngineMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithHistoryWindow overrides how many stored turns feed the prompt.
func WithHistoryWindow(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

// WithRecentWindow overrides how many customer turns the order heuristic
// scans.
func WithRecentWindow(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.recentWindow = n
		}
	}
}

// WithSendTimeout overrides the outbound provider call timeout.
func WithSendTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// NewOrchestrator wires the turn pipeline. All positional dependencies are
// required.
func NewOrchestrator(
	store turnStore,
	shopDir shopDirectory,
	catalogSrc catalogSource,
	generator replyGenerator,
	orderSvc orderPlacer,
	publisher events.Publisher,
	logger *logging.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if shopDir == nil {
		panic("conversation: shop directory cannot be nil")
	}
	if catalogSrc == nil {
		panic("conversation: catalog source cannot be nil")
	}
	if generator == nil {
		panic("conversation: generator cannot be nil")
	}
	if orderSvc == nil {
		panic("conversation: order service cannot be nil")
	}
	if publisher == nil {
		panic("conversation: event publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	o := &Orchestrator{
		store:         store,
		shops:         shopDir,
		catalog:       catalogSrc,
		generator:     generator,
		orders:        orderSvc,
		publisher:     publisher,
		logger:        logger.Component("orchestrator"),
		historyWindow: defaultHistoryWindow,
		recentWindow:  defaultRecentWindow,
		sendTimeout:   defaultSendTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// HandleInbound processes one webhook-delivered message. The provider has
// already been acked, so every outcome short of an infrastructure failure
// resolves to a TurnResult; an error here means the turn should be retried.
func (o *Orchestrator) HandleInbound(ctx context.Context, req InboundRequest) (*TurnResult, error) {
	ctx, span := turnTracer.Start(ctx, "orchestrator.HandleInbound", trace.WithAttributes(
		attribute.String("shop.id", req.ShopID),
		attribute.String("channel", req.Channel),
	))
	defer span.End()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		o.metrics.ObserveInbound(req.Channel, "skipped_empty")
		return &TurnResult{Skipped: SkipEmptyText}, nil
	}

	shop, err := o.shops.GetByID(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load shop %s: %w", req.ShopID, err)
	}
	if shop.Suspended() {
		o.metrics.ObserveInbound(req.Channel, "dropped_suspended")
		o.logger.Info("dropping inbound for suspended shop",
			"shop_id", req.ShopID,
			"channel", req.Channel,
		)
		return &TurnResult{Skipped: SkipSuspended}, nil
	}

	conv, err := o.store.FindCurrent(ctx, req.ShopID, req.ExternalCustomerID)
	if errors.Is(err, ErrConversationNotFound) {
		conv, err = o.store.Create(ctx, req.ShopID, req.Channel, req.ExternalCustomerID, req.CustomerName)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: resolve thread: %w", err)
	}

	return o.runTurn(ctx, shop, conv, text, req.ProviderMessageID)
}

// SendMessage is the synchronous dashboard path: it injects a customer
// message into an existing conversation and runs the same pipeline, but
// reports problems as typed errors instead of silently dropping.
func (o *Orchestrator) SendMessage(ctx context.Context, shopID, conversationID, text string) (*TurnResult, error) {
	ctx, span := turnTracer.Start(ctx, "orchestrator.SendMessage", trace.WithAttributes(
		attribute.String("shop.id", shopID),
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := o.store.GetByID(ctx, shopID, conversationID)
	if err != nil {
		return nil, err
	}
	switch {
	case conv.State == StateArchived:
		return nil, ErrConversationArchived
	case conv.State == StatePaused || conv.PausedForHuman:
		return nil, ErrConversationPaused
	}

	shop, err := o.shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load shop %s: %w", shopID, err)
	}
	if shop.Suspended() {
		return nil, ErrShopSuspended
	}

	return o.runTurn(ctx, shop, conv, text, "")
}

// runTurn executes the shared pipeline for one customer message against a
// resolved conversation. The inbound text has already been validated.
func (o *Orchestrator) runTurn(ctx context.Context, shop *shops.Shop, conv *Conversation, text, providerMessageID string) (*TurnResult, error) {
	history, cacheWarm := o.loadHistory(ctx, conv.ID)

	inbound, err := o.store.AppendMessage(ctx, &StoredMessage{
		ConversationID:    conv.ID,
		Role:              RoleCustomer,
		Content:           text,
		Channel:           conv.Channel,
		ProviderMessageID: providerMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: persist inbound: %w", err)
	}
	o.publishMessage(ctx, conv.ShopID, inbound)

	result := &TurnResult{
		Conversation: conv,
		Inbound:      inbound,
		Intent:       intent.Classify(text),
	}

	// A paused thread still collects customer messages so the human
	// taking over sees them; the engine just stays silent.
	if conv.State == StatePaused || conv.PausedForHuman {
		o.metrics.ObserveInbound(conv.Channel, "skipped_paused")
		result.Skipped = SkipPaused
		return result, nil
	}

	if result.Intent.Category == intent.CategoryHumanRequest {
		reply, err := o.handOff(ctx, shop, conv, text)
		if err != nil {
			return nil, err
		}
		result.Reply = reply
		o.saveHistory(ctx, conv.ID, cacheWarm, history, text, reply.Content)
		o.deliver(ctx, conv, reply.Content)
		o.metrics.ObserveInbound(conv.Channel, "ok")
		return result, nil
	}

	products, services, err := o.loadCatalog(ctx, shop)
	if err != nil {
		return nil, err
	}

	promptHistory := append(append([]ChatMessage(nil), history...), ChatMessage{Role: ChatRoleUser, Content: text})
	system := BuildSystemPrompt(PromptInput{
		ShopName:     shop.Name,
		BusinessMode: shop.BusinessMode,
		Description:  shop.Description,
		Products:     products,
		Services:     services,
		Arabic:       wantsArabic(text, history),
	})

	replyText := o.generator.Generate(ctx, GenerationInput{
		ConversationID: conv.ID,
		System:         system,
		History:        promptHistory,
	})

	reply, err := o.store.AppendMessage(ctx, &StoredMessage{
		ConversationID: conv.ID,
		Role:           RoleAgent,
		Content:        replyText,
		Channel:        conv.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: persist reply: %w", err)
	}
	result.Reply = reply
	o.publishMessage(ctx, conv.ShopID, reply)
	o.saveHistory(ctx, conv.ID, cacheWarm, history, text, replyText)

	result.Order = o.maybePlaceOrder(ctx, conv, result.Intent, replyText, text, history, products)

	o.deliver(ctx, conv, replyText)
	o.metrics.ObserveInbound(conv.Channel, "ok")
	return result, nil
}

// handOff persists the canonical hand-off sentence, pauses the thread
// and tells the owner. The notice is best-effort: the customer already
// has their confirmation.
func (o *Orchestrator) handOff(ctx context.Context, shop *shops.Shop, conv *Conversation, text string) (*StoredMessage, error) {
	reply, err := o.store.AppendMessage(ctx, &StoredMessage{
		ConversationID: conv.ID,
		Role:           RoleAgent,
		Content:        handOffReply,
		Channel:        conv.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: persist hand-off: %w", err)
	}
	if err := o.store.UpdateState(ctx, conv.ShopID, conv.ID, StatePaused, true); err != nil {
		return nil, fmt.Errorf("conversation: pause for hand-off: %w", err)
	}
	conv.State = StatePaused
	conv.PausedForHuman = true

	o.publishMessage(ctx, conv.ShopID, reply)
	o.publishConversation(ctx, conv)
	o.logger.Info("conversation handed off to human",
		"shop_id", conv.ShopID,
		"conversation_id", conv.ID,
	)

	if o.handoffNotices != nil {
		notice := notify.HandoffNotice{
			ConversationID:  conv.ID,
			Channel:         conv.Channel,
			CustomerName:    conv.CustomerName,
			CustomerContact: conv.ExternalCustomerID,
			LastMessage:     text,
			RequestedAt:     time.Now().UTC(),
		}
		if err := o.handoffNotices.SendHandoffNotice(ctx, shop, notice); err != nil {
			o.logger.Warn("hand-off notice failed", "conversation_id", conv.ID, "error", err)
		}
	}
	return reply, nil
}

// maybePlaceOrder runs the extraction heuristic over the finished turn and
// commits a draft when one emerges. Failures are logged, never surfaced:
// the customer already has their reply.
func (o *Orchestrator) maybePlaceOrder(ctx context.Context, conv *Conversation, intentRes intent.Result, replyText, text string, history []ChatMessage, products []catalog.Product) *orders.Order {
	draft, reasons := orders.Evaluate(orders.ExtractionInput{
		Intent:             intentRes,
		AIReply:            replyText,
		RecentCustomerText: o.recentCustomerText(history, text),
		Products:           products,
		StoredCustomerName: conv.CustomerName,
		ExternalCustomerID: conv.ExternalCustomerID,
	})
	if draft == nil {
		if len(reasons) > 0 {
			o.metrics.ObserveOrderExtraction("skipped")
			o.logger.Debug("no order extracted",
				"conversation_id", conv.ID,
				"reasons", strings.Join(reasons, "; "),
			)
		}
		return nil
	}

	order, err := o.orders.CreateFromDraft(ctx, conv.ShopID, conv.ID, conv.Channel, draft)
	if err != nil {
		o.metrics.ObserveOrderExtraction("rejected")
		o.logger.Warn("order commit failed",
			"conversation_id", conv.ID,
			"product", draft.Product.Name,
			"error", err,
		)
		return nil
	}
	o.metrics.ObserveOrderExtraction("created")

	if conv.CustomerName == "" && order.CustomerName != "" && order.CustomerName != orders.PlaceholderCustomerName {
		if err := o.store.UpdateCustomerName(ctx, conv.ID, order.CustomerName); err != nil {
			o.logger.Warn("customer name backfill failed", "conversation_id", conv.ID, "error", err)
		} else {
			conv.CustomerName = order.CustomerName
		}
	}

	o.publishOrder(ctx, conv.ShopID, order)
	o.logger.Info("order extracted",
		"shop_id", conv.ShopID,
		"conversation_id", conv.ID,
		"order_id", order.ID,
		"product", order.ProductName,
		"quantity", order.Quantity,
	)
	return order
}

// Pause stops AI handling so a human can take over. Pausing an already
// paused thread is a no-op.
func (o *Orchestrator) Pause(ctx context.Context, shopID, conversationID string) (*Conversation, error) {
	conv, err := o.store.GetByID(ctx, shopID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State == StateArchived {
		return nil, ErrConversationArchived
	}
	if conv.State == StatePaused {
		return conv, nil
	}

	if err := o.store.UpdateState(ctx, shopID, conversationID, StatePaused, true); err != nil {
		return nil, err
	}
	conv.State = StatePaused
	conv.PausedForHuman = true

	o.appendNotice(ctx, conv, pausedNotice)
	o.publishConversation(ctx, conv)
	return conv, nil
}

// Resume returns a paused thread to AI handling.
func (o *Orchestrator) Resume(ctx context.Context, shopID, conversationID string) (*Conversation, error) {
	conv, err := o.store.GetByID(ctx, shopID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State == StateArchived {
		return nil, ErrConversationArchived
	}
	if conv.State == StateActive && !conv.PausedForHuman {
		return conv, nil
	}

	if err := o.store.UpdateState(ctx, shopID, conversationID, StateActive, false); err != nil {
		return nil, err
	}
	conv.State = StateActive
	conv.PausedForHuman = false

	o.appendNotice(ctx, conv, resumedNotice)
	o.publishConversation(ctx, conv)
	return conv, nil
}

// Archive closes a conversation, exports its transcript when an archiver
// is wired, and drops the cached prompt history. A later message from the
// same customer starts a fresh thread.
func (o *Orchestrator) Archive(ctx context.Context, shopID, conversationID string) (*Conversation, error) {
	conv, err := o.store.GetByID(ctx, shopID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State == StateArchived {
		return conv, nil
	}

	if err := o.store.UpdateState(ctx, shopID, conversationID, StateArchived, false); err != nil {
		return nil, err
	}
	conv.State = StateArchived
	conv.PausedForHuman = false

	o.publishConversation(ctx, conv)

	if o.archiver != nil && o.archiver.Enabled() {
		msgs, err := o.store.Messages(ctx, conversationID, 0)
		if err != nil {
			o.logger.Warn("transcript load for archive failed", "conversation_id", conversationID, "error", err)
		} else if err := o.archiver.ArchiveConversation(ctx, conv, msgs); err != nil {
			o.logger.Warn("transcript archive failed", "conversation_id", conversationID, "error", err)
		}
	}
	if o.history != nil {
		if err := o.history.Clear(ctx, conversationID); err != nil {
			o.logger.Debug("history cache clear failed", "conversation_id", conversationID, "error", err)
		}
	}
	return conv, nil
}

// appendNotice persists one of the fixed operator notices and pushes it to
// the customer. Notice failures never fail the operator action.
func (o *Orchestrator) appendNotice(ctx context.Context, conv *Conversation, notice string) {
	msg, err := o.store.AppendMessage(ctx, &StoredMessage{
		ConversationID: conv.ID,
		Role:           RoleAgent,
		Content:        notice,
		Channel:        conv.Channel,
	})
	if err != nil {
		o.logger.Warn("notice persist failed", "conversation_id", conv.ID, "error", err)
		return
	}
	o.publishMessage(ctx, conv.ShopID, msg)
	o.deliver(ctx, conv, notice)
}

// loadHistory returns prior prompt turns, preferring the Redis cache and
// falling back to the message store. The second return reports whether the
// cache had an entry.
func (o *Orchestrator) loadHistory(ctx context.Context, conversationID string) ([]ChatMessage, bool) {
	if o.history != nil {
		cached, err := o.history.Load(ctx, conversationID)
		if err != nil {
			o.logger.Debug("history cache load failed", "conversation_id", conversationID, "error", err)
		} else if cached != nil {
			return trimHistory(cached, o.historyWindow), true
		}
	}

	stored, err := o.store.Messages(ctx, conversationID, o.historyWindow)
	if err != nil {
		o.logger.Warn("history load failed, replying without context",
			"conversation_id", conversationID,
			"error", err,
		)
		return nil, false
	}

	out := make([]ChatMessage, 0, len(stored))
	for _, m := range stored {
		role := ChatRoleUser
		if m.Role == RoleAgent {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	return out, false
}

// saveHistory refreshes the cache after a finished turn. The cache is an
// optimization; failures are logged and forgotten.
func (o *Orchestrator) saveHistory(ctx context.Context, conversationID string, warm bool, history []ChatMessage, userText, replyText string) {
	if o.history == nil {
		return
	}
	updated := append(append([]ChatMessage(nil), history...),
		ChatMessage{Role: ChatRoleUser, Content: userText},
		ChatMessage{Role: ChatRoleAssistant, Content: replyText},
	)
	updated = trimHistory(updated, o.historyWindow)
	if err := o.history.Save(ctx, conversationID, updated); err != nil {
		o.logger.Debug("history cache save failed",
			"conversation_id", conversationID,
			"warm", warm,
			"error", err,
		)
	}
}

// loadCatalog fetches the shop's active offerings for its business mode.
func (o *Orchestrator) loadCatalog(ctx context.Context, shop *shops.Shop) ([]catalog.Product, []catalog.Service, error) {
	switch shop.BusinessMode {
	case shops.ModeServices:
		services, err := o.catalog.ActiveServices(ctx, shop.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("conversation: load services: %w", err)
		}
		return nil, services, nil
	default:
		products, err := o.catalog.ActiveProducts(ctx, shop.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("conversation: load products: %w", err)
		}
		return products, nil, nil
	}
}

// recentCustomerText joins the current message with the most recent prior
// customer turns, newest last, for the order heuristic.
func (o *Orchestrator) recentCustomerText(history []ChatMessage, current string) string {
	var prior []string
	for i := len(history) - 1; i >= 0 && len(prior) < o.recentWindow-1; i-- {
		if history[i].Role == ChatRoleUser {
			prior = append(prior, history[i].Content)
		}
	}
	parts := make([]string, 0, len(prior)+1)
	for i := len(prior) - 1; i >= 0; i-- {
		parts = append(parts, prior[i])
	}
	parts = append(parts, current)
	return strings.Join(parts, "\n")
}

// deliver pushes an agent message to the customer over the originating
// channel. Webchat delivery happens over the caller's own socket, and
// provider failures are logged, never propagated: the message is already
// part of the transcript.
func (o *Orchestrator) deliver(ctx context.Context, conv *Conversation, text string) {
	ch := channels.Channel(conv.Channel)
	if ch == channels.ChannelChat || o.senders == nil {
		return
	}
	sender, ok := o.senders.Sender(ch)
	if !ok {
		o.logger.Debug("no sender registered", "channel", conv.Channel)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	defer cancel()
	if err := sender.SendText(sctx, conv.ExternalCustomerID, text); err != nil {
		o.metrics.ObserveOutbound(conv.Channel, "error")
		o.logger.Warn("outbound send failed",
			"channel", conv.Channel,
			"conversation_id", conv.ID,
			"error", err,
		)
		return
	}
	o.metrics.ObserveOutbound(conv.Channel, "ok")
}

func (o *Orchestrator) publishMessage(ctx context.Context, shopID string, msg *StoredMessage) {
	env, err := events.NewEnvelope(events.TypeNewMessage, events.MessageEvent{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Role:           msg.Role,
		Content:        msg.Content,
		Channel:        msg.Channel,
		CreatedAt:      msg.CreatedAt,
	})
	if err == nil {
		err = o.publisher.Publish(ctx, shopID, env)
	}
	if err != nil {
		o.logger.Warn("message event publish failed", "conversation_id", msg.ConversationID, "error", err)
		return
	}
	o.metrics.ObserveEventPublished(events.TypeNewMessage)
}

func (o *Orchestrator) publishOrder(ctx context.Context, shopID string, order *orders.Order) {
	env, err := events.NewEnvelope(events.TypeNewOrder, events.OrderEvent{
		OrderID:        order.ID,
		ConversationID: order.ConversationID,
		CustomerName:   order.CustomerName,
		ProductName:    order.ProductName,
		Quantity:       order.Quantity,
		Revenue:        order.Revenue,
		CreatedAt:      order.CreatedAt,
	})
	if err == nil {
		err = o.publisher.Publish(ctx, shopID, env)
	}
	if err != nil {
		o.logger.Warn("order event publish failed", "order_id", order.ID, "error", err)
		return
	}
	o.metrics.ObserveEventPublished(events.TypeNewOrder)
}

func (o *Orchestrator) publishConversation(ctx context.Context, conv *Conversation) {
	env, err := events.NewEnvelope(events.TypeConversationUpdated, events.ConversationEvent{
		ConversationID: conv.ID,
		State:          conv.State,
		PausedForHuman: conv.PausedForHuman,
		UpdatedAt:      time.Now().UTC(),
	})
	if err == nil {
		err = o.publisher.Publish(ctx, conv.ShopID, env)
	}
	if err != nil {
		o.logger.Warn("conversation event publish failed", "conversation_id", conv.ID, "error", err)
		return
	}
	o.metrics.ObserveEventPublished(events.TypeConversationUpdated)
}

// wantsArabic reports whether the reply should lead with Arabic, based on
// the current message or any prior customer turn.
func wantsArabic(text string, history []ChatMessage) bool {
	if intent.ContainsArabic(text) {
		return true
	}
	for _, msg := range history {
		if msg.Role == ChatRoleUser && intent.ContainsArabic(msg.Content) {
			return true
		}
	}
	return false
}

func trimHistory(history []ChatMessage, window int) []ChatMessage {
	if window <= 0 || len(history) <= window {
		return history
	}
	return history[len(history)-window:]
}
