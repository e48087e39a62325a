// Package advisor routes inbound farmer messages to the image, weather,
// or conversation path and assembles the reply.
package advisor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"agribot/internal/advisory"
	"agribot/internal/domain"
	"agribot/internal/metrics"
)

// Fixed replies. These are sent verbatim so farmers see a stable message
// for each failure mode.
const (
	apologyReply = "Sorry, I encountered an error processing your message. Please try again in a moment. If the problem persists, contact support."

	modelApology = "I apologize, but I'm having trouble connecting to my knowledge base right now. Please try again in a moment."

	locationRequest = "To provide weather information, I need to know your location. Please tell me which town or region you're in. For example: 'I'm in Nairobi' or 'I'm near Kigali'"

	imagePlaceholder = "Image uploaded"
)

const messageTimeout = 2 * time.Minute

// Advisor consumes the bus and produces replies.
type Advisor struct {
	store      domain.ProfileStore
	model      domain.DialogueModel
	classifier domain.ImageClassifier
	forecaster domain.ForecastProvider
	bus        domain.MessageBus
	logger     *slog.Logger

	historyTurns  int
	maxConcurrent int
	now           func() time.Time
}

type Config struct {
	Store         domain.ProfileStore
	Model         domain.DialogueModel
	Classifier    domain.ImageClassifier
	Forecaster    domain.ForecastProvider
	Bus           domain.MessageBus
	Logger        *slog.Logger
	HistoryTurns  int
	MaxConcurrent int
	Now           func() time.Time // defaults to time.Now
}

func New(cfg Config) *Advisor {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 5
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Advisor{
		store:         cfg.Store,
		model:         cfg.Model,
		classifier:    cfg.Classifier,
		forecaster:    cfg.Forecaster,
		bus:           cfg.Bus,
		logger:        cfg.Logger,
		historyTurns:  cfg.HistoryTurns,
		maxConcurrent: cfg.MaxConcurrent,
		now:           cfg.Now,
	}
}

// Run consumes the bus until the context is cancelled or the bus closes.
// Messages are processed concurrently up to maxConcurrent.
func (a *Advisor) Run(ctx context.Context) {
	sem := make(chan struct{}, a.maxConcurrent)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.bus.Subscribe():
			if !ok {
				return
			}
			// Don't let a saturated semaphore hold up shutdown.
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				a.processMessage(ctx, m)
			}(msg)
		}
	}
}

// processMessage handles one message end to end. A panic anywhere in the
// pipeline is converted into the fixed apology so the farmer always hears
// back.
func (a *Advisor) processMessage(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()
	metrics.ActiveMessages.Inc()
	defer metrics.ActiveMessages.Dec()

	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	reply := func() (out string) {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("panic processing message", "channel", msg.Channel, "from", msg.From, "panic", r)
				metrics.ProcessingFailures.Inc()
				out = apologyReply
			}
		}()
		out, err := a.Handle(ctx, msg)
		if err != nil {
			a.logger.Error("message processing failed", "channel", msg.Channel, "from", msg.From, "error", err)
			metrics.ProcessingFailures.Inc()
			return apologyReply
		}
		return out
	}()

	a.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
}

// Handle routes a message and returns the reply text.
func (a *Advisor) Handle(ctx context.Context, msg domain.InboundMessage) (string, error) {
	phone := contactKey(msg.From)

	farmer, err := a.store.GetOrCreateFarmer(ctx, phone)
	if err != nil {
		return "", err
	}

	turns, err := a.store.RecentTurns(ctx, phone, a.historyTurns)
	if err != nil {
		// History is an enhancement; answer without it.
		a.logger.Warn("cannot load conversation history", "phone", phone, "error", err)
		turns = nil
	}

	switch SelectPath(msg) {
	case ImagePath:
		metrics.ImageMessages.Inc()
		return a.handleImage(ctx, msg, farmer, turns)
	case WeatherPath:
		metrics.WeatherMessages.Inc()
		return a.handleWeather(ctx, msg, farmer, turns)
	default:
		metrics.ConversationMsgs.Inc()
		return a.handleConversation(ctx, msg, farmer, turns)
	}
}

func (a *Advisor) handleImage(ctx context.Context, msg domain.InboundMessage, farmer *domain.FarmerProfile, turns []domain.ConversationTurn) (string, error) {
	imageURL := msg.Media[0]

	metrics.ClassifierRequests.Inc()
	preds, err := a.classifier.Classify(ctx, imageURL)
	if err != nil {
		a.logger.Warn("image classification failed", "phone", farmer.Phone, "error", err)
		metrics.ClassifierFailures.Inc()
		preds = nil
	}

	block := advisory.FormatDisease(preds)

	userMessage := msg.Body
	if userMessage == "" {
		userMessage = imagePlaceholder
	}

	// No usable predictions: the formatter's fallback is the whole reply
	// and still counts as an answered turn.
	if terminalPredictions(preds) {
		a.persistTurn(ctx, domain.ConversationTurn{
			FarmerPhone: farmer.Phone,
			Kind:        domain.TurnImage,
			UserMessage: userMessage,
			AIResponse:  block,
			Metadata:    &domain.TurnMetadata{Predictions: preds, ImageURL: imageURL},
		})
		return block, nil
	}

	aiResponse, err := a.respond(ctx, farmer, AssembleContext(turns, diseasePrompt(block, msg.Body)))
	if err != nil {
		a.logger.Error("model call failed on image path", "phone", farmer.Phone, "error", err)
		return block + "\n\n" + modelApology, nil
	}

	a.persistTurn(ctx, domain.ConversationTurn{
		FarmerPhone: farmer.Phone,
		Kind:        domain.TurnImage,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Metadata:    &domain.TurnMetadata{Predictions: preds, ImageURL: imageURL},
	})
	return block + "\n\n" + aiResponse, nil
}

func (a *Advisor) handleWeather(ctx context.Context, msg domain.InboundMessage, farmer *domain.FarmerProfile, turns []domain.ConversationTurn) (string, error) {
	if farmer.Location == "" {
		a.persistTurn(ctx, domain.ConversationTurn{
			FarmerPhone: farmer.Phone,
			Kind:        domain.TurnText,
			UserMessage: msg.Body,
			AIResponse:  locationRequest,
		})
		return locationRequest, nil
	}

	metrics.ForecastRequests.Inc()
	snap, err := a.forecaster.Forecast(ctx, farmer.Location)
	if err != nil {
		a.logger.Warn("forecast failed", "phone", farmer.Phone, "location", farmer.Location, "error", err)
		metrics.ForecastFailures.Inc()
		snap = nil
	}

	block := advisory.FormatWeather(snap)

	// Forecast unavailable: the formatter's fallback is the whole reply.
	if snap == nil {
		a.persistTurn(ctx, domain.ConversationTurn{
			FarmerPhone: farmer.Phone,
			Kind:        domain.TurnText,
			UserMessage: msg.Body,
			AIResponse:  block,
		})
		return block, nil
	}

	aiResponse, err := a.respond(ctx, farmer, AssembleContext(turns, weatherPrompt(block, msg.Body, farmer.Location)))
	if err != nil {
		a.logger.Error("model call failed on weather path", "phone", farmer.Phone, "error", err)
		return block + "\n\n" + modelApology, nil
	}

	a.persistTurn(ctx, domain.ConversationTurn{
		FarmerPhone: farmer.Phone,
		Kind:        domain.TurnText,
		UserMessage: msg.Body,
		AIResponse:  aiResponse,
		Metadata:    &domain.TurnMetadata{Forecast: snap},
	})
	return block + "\n\n" + aiResponse, nil
}

func (a *Advisor) handleConversation(ctx context.Context, msg domain.InboundMessage, farmer *domain.FarmerProfile, turns []domain.ConversationTurn) (string, error) {
	aiResponse, err := a.respond(ctx, farmer, AssembleContext(turns, msg.Body))
	if err != nil {
		a.logger.Error("model call failed on conversation path", "phone", farmer.Phone, "error", err)
		return modelApology, nil
	}

	a.persistTurn(ctx, domain.ConversationTurn{
		FarmerPhone: farmer.Phone,
		Kind:        domain.TurnText,
		UserMessage: msg.Body,
		AIResponse:  aiResponse,
	})
	return aiResponse, nil
}

func (a *Advisor) respond(ctx context.Context, farmer *domain.FarmerProfile, messages []domain.ChatMessage) (string, error) {
	metrics.ModelRequests.Inc()
	start := time.Now()
	reply, err := a.model.Respond(ctx, systemPrompt(farmer, a.now()), messages)
	metrics.ModelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelFailures.Inc()
		return "", err
	}
	return reply, nil
}

// persistTurn saves a completed exchange. A storage failure is logged but
// never blocks the reply already composed for the farmer.
func (a *Advisor) persistTurn(ctx context.Context, turn domain.ConversationTurn) {
	if err := a.store.AppendTurn(ctx, turn); err != nil {
		a.logger.Error("cannot persist conversation turn", "phone", turn.FarmerPhone, "error", err)
	}
}

// terminalPredictions reports whether the classifier output carries no
// diagnosis to interpret: nothing at all, or the cold-model sentinel.
func terminalPredictions(preds []domain.Prediction) bool {
	if len(preds) == 0 {
		return true
	}
	return preds[0].Note != ""
}

// contactKey strips the channel prefix from a sender address
// ("whatsapp:+254700000001" becomes "+254700000001") so a farmer keeps one
// profile across channels that share the identifier.
func contactKey(from string) string {
	if i := strings.Index(from, ":"); i >= 0 {
		return from[i+1:]
	}
	return from
}
