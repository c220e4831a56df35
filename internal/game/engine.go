package game

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// Collaborator interfaces. Defined on the consumer side; the ledger, cards,
// choice, movement and negotiation packages implement them.

// ResourceLedger mutates player money and time pools and answers the live
// financial questions the engine needs.
type ResourceLedger interface {
	AddMoney(playerID string, amount int, source, reason string) error
	SpendMoney(playerID string, amount int, source, reason, sourceType string) error
	AddTime(playerID string, amount int, source, reason string) error
	SpendTime(playerID string, amount int, source, reason string) error
	// ProjectScope computes the player's current project scope from their
	// work cards. Never cached.
	ProjectScope(playerID string) (int, error)
	// OutstandingPrincipal sums the player's open loan principal.
	OutstandingPrincipal(playerID string) (int, error)
	RecordDesignFee(playerID string, amount int) error
	DesignFeeTotal(playerID string) (int, error)
}

// CardInventory manages decks, hands and the card play lifecycle.
type CardInventory interface {
	DrawCards(playerID string, cardType CardType, count int, source, reason string) ([]string, error)
	DiscardCards(playerID string, cardIDs []string, source, reason string) error
	PlayerCards(playerID string, cardType CardType) ([]string, error)
	ActivateCard(playerID, cardID string, duration int) error
	FinalizePlayedCard(playerID, cardID string) error
	// ApplyCardEffects runs the full effect application for a card that has
	// not gone through the normal play path yet.
	ApplyCardEffects(ctx context.Context, playerID, cardID string) error
}

// ChoiceBroker blocks until the player answers the prompt and returns the
// chosen option id.
type ChoiceBroker interface {
	CreateChoice(ctx context.Context, playerID, kind, prompt string, options []ChoiceOption) (string, error)
}

// MovementService relocates players and answers space questions.
type MovementService interface {
	MovePlayer(ctx context.Context, playerID, destination string) error
	SpacePhase(spaceName string) string
}

// TargetResolver expands a target rule into concrete player ids,
// interactively when the rule calls for a choice.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, sourcePlayerID, rule string) ([]string, error)
	DescribeTargets(playerIDs []string) string
}

// NegotiationService handles player-to-player negotiations. Attached after
// construction; negotiation effects fail while it is absent.
type NegotiationService interface {
	Initiate(ctx context.Context, initiatorID, partnerID string) NegotiationOutcome
	Respond(ctx context.Context, negotiationID, playerID, response string, offer *NegotiationOffer) NegotiationOutcome
}

// TurnController applies turn-order modifiers. Attached after construction;
// SKIP_TURN effects fail while it is absent.
type TurnController interface {
	SetSkipTurns(playerID string, turns int) error
}

// EffectEngine is the single gateway through which game state changes flow.
// Every card play, space landing and dice outcome is expressed as effects and
// processed here. Failures are reported in results; nothing panics through
// the engine boundary.
type EffectEngine struct {
	logger   *zap.Logger
	store    *Store
	ledger   ResourceLedger
	cards    CardInventory
	choices  ChoiceBroker
	movement MovementService
	targets  TargetResolver
	bus      *events.Bus

	// negotiation and turns are attached after construction to break the
	// construction cycle between the engine and those services.
	mu          sync.RWMutex
	negotiation NegotiationService
	turns       TurnController
}

// NewEffectEngine wires the engine to its collaborators. Negotiation and
// turn control are attached separately once they exist.
func NewEffectEngine(store *Store, ledger ResourceLedger, cards CardInventory, choices ChoiceBroker, movement MovementService, targets TargetResolver, bus *events.Bus, logger *zap.Logger) *EffectEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EffectEngine{
		logger:   logger,
		store:    store,
		ledger:   ledger,
		cards:    cards,
		choices:  choices,
		movement: movement,
		targets:  targets,
		bus:      bus,
	}
}

// AttachNegotiationService completes the engine's wiring for negotiation
// effects.
func (e *EffectEngine) AttachNegotiationService(svc NegotiationService) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.negotiation = svc
}

// AttachTurnController completes the engine's wiring for turn control
// effects.
func (e *EffectEngine) AttachTurnController(tc TurnController) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = tc
}

func (e *EffectEngine) negotiationService() NegotiationService {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.negotiation
}

func (e *EffectEngine) turnController() TurnController {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.turns
}

// ProcessEffects runs a batch of effects. Per-effect failures never abort
// the batch; successful effects may enqueue follow-up effects which are
// processed in FIFO order within the same batch and its limits.
func (e *EffectEngine) ProcessEffects(ctx context.Context, effects []Effect, ectx EffectContext) BatchEffectResult {
	return e.processBatch(ctx, effects, ectx, 0)
}

// ProcessEffect runs a single effect, including any follow-up effects it
// produces.
func (e *EffectEngine) ProcessEffect(ctx context.Context, effect Effect, ectx EffectContext) EffectResult {
	res := e.processOne(ctx, effect, ectx, 0)
	if res.Success && len(res.ResultingEffects) > 0 {
		sub := e.processBatch(ctx, res.ResultingEffects, ectx, 1)
		if !sub.Success {
			e.logger.Warn("follow-up effects failed",
				zap.String("effect_type", string(effect.Type())),
				zap.Int("failed", sub.FailedEffects),
				zap.Strings("errors", sub.Errors))
		}
	}
	return res
}

// processBatch drains an explicit FIFO queue. The queue grows when effects
// produce follow-ups; a counter of everything ever enqueued enforces the
// batch limit, and depth bounds recursion through nested sub-batches.
func (e *EffectEngine) processBatch(ctx context.Context, effects []Effect, ectx EffectContext, depth int) BatchEffectResult {
	var batch BatchEffectResult

	if depth > maxRecursionDepth {
		e.logger.Error("effect recursion depth exceeded",
			zap.Int("depth", depth),
			zap.String("source", ectx.Source))
		msg := fmt.Sprintf("Effect recursion depth exceeded (max %d)", maxRecursionDepth)
		for _, effect := range effects {
			batch.add(failureResult(effect.Type(), msg))
		}
		return batch.finalize()
	}

	queue := make([]Effect, len(effects))
	copy(queue, effects)
	enqueued := len(queue)
	warned := false

	for len(queue) > 0 {
		if enqueued > maxBatchEffects {
			msg := fmt.Sprintf("Batch effect limit exceeded: %d effects enqueued (max %d)", enqueued, maxBatchEffects)
			e.logger.Error("batch effect limit exceeded",
				zap.Int("enqueued", enqueued),
				zap.Int("limit", maxBatchEffects),
				zap.String("source", ectx.Source))
			batch.Errors = append(batch.Errors, msg)
			for _, rest := range queue {
				batch.TotalEffects++
				batch.FailedEffects++
				batch.Results = append(batch.Results, EffectResult{
					Success:    false,
					EffectType: rest.Type(),
					Error:      "batch aborted: effect limit exceeded",
				})
			}
			break
		}
		if !warned && enqueued > batchWarnThreshold {
			warned = true
			e.logger.Warn("batch effect count approaching limit",
				zap.Int("enqueued", enqueued),
				zap.Int("limit", maxBatchEffects),
				zap.String("source", ectx.Source))
		}

		effect := queue[0]
		queue = queue[1:]

		res := e.processOne(ctx, effect, ectx, depth)
		batch.add(res)

		if res.Success && len(res.ResultingEffects) > 0 {
			queue = append(queue, res.ResultingEffects...)
			enqueued += len(res.ResultingEffects)
		}
	}

	out := batch.finalize()
	if depth == 0 {
		e.logger.Debug("effect batch processed",
			zap.String("source", ectx.Source),
			zap.String("trigger", string(ectx.TriggerEvent)),
			zap.Int("total", out.TotalEffects),
			zap.Int("successful", out.SuccessfulEffects),
			zap.Int("failed", out.FailedEffects))
		if e.bus != nil {
			evt := events.NewWithAmount(events.EventBatchProcessed, e.store.GameID(), ectx.PlayerID, ectx.Source, out.TotalEffects)
			evt.Metadata["successful"] = fmt.Sprintf("%d", out.SuccessfulEffects)
			evt.Metadata["failed"] = fmt.Sprintf("%d", out.FailedEffects)
			e.bus.Publish(evt)
		}
	}
	return out
}

// processOne validates and dispatches a single effect without draining its
// follow-ups; the caller owns the queue.
func (e *EffectEngine) processOne(ctx context.Context, effect Effect, ectx EffectContext, depth int) EffectResult {
	if effect == nil {
		return EffectResult{Success: false, Error: "Effect validation failed"}
	}
	if !e.ValidateEffect(effect, ectx) {
		e.logger.Warn("effect validation failed",
			zap.String("effect_type", string(effect.Type())),
			zap.String("source", ectx.Source))
		return failureResult(effect.Type(), "Effect validation failed")
	}

	res := e.dispatch(ctx, effect, ectx, depth)

	if e.bus != nil {
		eventType := events.EventEffectApplied
		if !res.Success {
			eventType = events.EventEffectFailed
		}
		evt := events.New(eventType, e.store.GameID(), firstNonEmpty(effectPlayerID(effect), ectx.PlayerID), ectx.Source)
		evt.Description = DescribeEffect(effect)
		evt.Metadata["effect_type"] = string(effect.Type())
		if res.Error != "" {
			evt.Metadata["error"] = res.Error
		}
		e.bus.Publish(evt)
	}
	return res
}

// firstNonEmpty returns the first of its arguments that is not empty.
func firstNonEmpty(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

// dispatch is the exhaustive mapping from effect variant to handler.
func (e *EffectEngine) dispatch(ctx context.Context, effect Effect, ectx EffectContext, depth int) EffectResult {
	switch eff := effect.(type) {
	case ResourceChange:
		return e.applyResourceChange(eff, ectx)
	case CardDraw:
		return e.applyCardDraw(eff, ectx)
	case CardDiscard:
		return e.applyCardDiscard(eff, ectx)
	case Choice:
		return e.applyChoice(ctx, eff, ectx)
	case Log:
		return e.applyLog(eff, ectx)
	case PlayerMovement:
		return e.applyPlayerMovement(ctx, eff, ectx)
	case TurnControl:
		return e.applyTurnControl(eff, ectx)
	case CardActivation:
		return e.applyCardActivation(eff, ectx)
	case EffectGroupTargeted:
		return e.applyGroupTargeted(ctx, eff, ectx, depth)
	case RecalculateScope:
		return e.applyRecalculateScope(eff, ectx)
	case ConditionalEffect:
		return e.applyConditional(ctx, eff, ectx, depth)
	case ChoiceOfEffects:
		return e.applyChoiceOfEffects(ctx, eff, ectx, depth)
	case PlayCard:
		return e.applyPlayCard(ctx, eff, ectx)
	case DurationStored:
		// Placeholder recorded when effects were stored for later turns.
		return successResult(EffectTypeDurationStored)
	case InitiateNegotiation:
		return e.applyInitiateNegotiation(ctx, eff, ectx)
	case NegotiationResponse:
		return e.applyNegotiationResponse(ctx, eff, ectx)
	case PlayerAgreementRequired:
		return e.applyAgreementRequired(ctx, eff, ectx)
	case FeeDeduction:
		return e.applyFeeDeduction(eff, ectx)
	default:
		return failureResult(effect.Type(), fmt.Sprintf("Unknown effect type: %s", effect.Type()))
	}
}

// resolvePlayer picks the payload's player when present, else the context's.
func resolvePlayer(payloadID string, ectx EffectContext) string {
	if payloadID != "" {
		return payloadID
	}
	return ectx.PlayerID
}

func (e *EffectEngine) applyResourceChange(eff ResourceChange, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeResourceChange, "No player specified for resource change")
	}
	source := eff.Source
	if source == "" {
		source = ectx.Source
	}
	reason := eff.Reason
	if reason == "" {
		reason = fmt.Sprintf("Effect from %s", source)
	}

	amount := eff.Amount
	sourceType := eff.SourceType
	isScopeFee := eff.PercentageOfScope > 0 && eff.Resource == ResourceMoney
	if isScopeFee {
		scope, err := e.ledger.ProjectScope(playerID)
		if err != nil {
			return failureResult(EffectTypeResourceChange, fmt.Sprintf("Failed to compute project scope: %v", err))
		}
		amount = -(scope * eff.PercentageOfScope / 100)
		if sourceType == "" {
			sourceType = "fee"
		}
	}

	if amount == 0 {
		// Nothing to move; succeed without touching the ledger.
		return successResult(EffectTypeResourceChange).WithData("amount", 0)
	}

	switch eff.Resource {
	case ResourceMoney:
		if amount > 0 {
			if err := e.ledger.AddMoney(playerID, amount, source, reason); err != nil {
				return failureResult(EffectTypeResourceChange, err.Error())
			}
		} else {
			if err := e.ledger.SpendMoney(playerID, -amount, source, reason, sourceType); err != nil {
				return failureResult(EffectTypeResourceChange, err.Error())
			}
			e.checkBankruptcy(playerID)
		}
		if isScopeFee {
			if err := e.ledger.RecordDesignFee(playerID, -amount); err != nil {
				e.logger.Warn("failed to record design fee",
					zap.String("player_id", playerID),
					zap.Error(err))
			} else {
				e.applyDesignFeePressure(playerID, source)
			}
		}
	case ResourceTime:
		if amount > 0 {
			if err := e.ledger.AddTime(playerID, amount, source, reason); err != nil {
				return failureResult(EffectTypeResourceChange, err.Error())
			}
		} else {
			if err := e.ledger.SpendTime(playerID, -amount, source, reason); err != nil {
				return failureResult(EffectTypeResourceChange, err.Error())
			}
		}
	}

	return successResult(EffectTypeResourceChange).WithData("amount", amount)
}

// checkBankruptcy re-reads the player after a negative money change and ends
// the game with no winner when their balance went below zero.
func (e *EffectEngine) checkBankruptcy(playerID string) {
	player, err := e.store.GetPlayer(playerID)
	if err != nil || player.Money >= 0 {
		return
	}
	e.logger.Warn("player is bankrupt",
		zap.String("player_id", playerID),
		zap.String("player", player.Name),
		zap.Int("money", player.Money))
	if e.bus != nil {
		e.bus.Publish(events.NewWithAmount(events.EventBankruptcy, e.store.GameID(), playerID, "", player.Money))
	}
	e.store.EndGame("", fmt.Sprintf("%s went bankrupt", player.Name))
}

const designFeeOverrunPenalty = 2

// applyDesignFeePressure enforces the viability cap on cumulative design
// fees. Reaching the cap during the design phase ends the project; outside
// it, the overrun costs time instead.
func (e *EffectEngine) applyDesignFeePressure(playerID, source string) {
	total, err := e.ledger.DesignFeeTotal(playerID)
	if err != nil {
		return
	}
	scope, err := e.ledger.ProjectScope(playerID)
	if err != nil || scope <= 0 {
		return
	}
	if total*100 < scope*designFeeCapPercent {
		return
	}
	player, err := e.store.GetPlayer(playerID)
	if err != nil {
		return
	}
	phase := e.movement.SpacePhase(player.CurrentSpace)
	if phase == PhaseDesign {
		e.logger.Warn("design fees reached viability cap during design",
			zap.String("player_id", playerID),
			zap.Int("fees", total),
			zap.Int("scope", scope))
		e.store.EndGame("", fmt.Sprintf("%s: design fees reached %d%% of project scope", player.Name, designFeeCapPercent))
		return
	}
	e.logger.Warn("design fees reached viability cap",
		zap.String("player_id", playerID),
		zap.String("phase", phase),
		zap.Int("fees", total),
		zap.Int("scope", scope))
	if err := e.ledger.SpendTime(playerID, designFeeOverrunPenalty, source, "design fee overrun penalty"); err != nil {
		e.logger.Warn("failed to apply design fee overrun penalty",
			zap.String("player_id", playerID),
			zap.Error(err))
	}
}

func (e *EffectEngine) applyCardDraw(eff CardDraw, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeCardDraw, "No player specified for card draw")
	}
	source := eff.Source
	if source == "" {
		source = ectx.Source
	}
	reason := eff.Reason
	if reason == "" {
		reason = fmt.Sprintf("Drew %d %s card(s)", eff.Count, eff.CardType)
	}

	drawn, err := e.cards.DrawCards(playerID, eff.CardType, eff.Count, source, reason)
	if err != nil {
		return failureResult(EffectTypeCardDraw, err.Error())
	}

	res := successResult(EffectTypeCardDraw).WithData("cardIds", drawn)
	if len(drawn) == 0 {
		return res
	}

	player, perr := e.store.GetPlayer(playerID)
	if perr == nil && player.CurrentSpace == SpaceOwnerFundInitiation {
		// Funding draws are applied immediately: each drawn card comes
		// back as an auto-played PLAY_CARD follow-up.
		for _, cardID := range drawn {
			res = res.WithResulting(PlayCard{
				PlayerID:   playerID,
				CardID:     cardID,
				AutoPlayed: true,
				Source:     "auto_play:" + source,
			})
		}
		e.store.EmitAutoAction(playerID, "AUTO_FUNDING",
			fmt.Sprintf("Automatically playing %d drawn funding card(s)", len(drawn)))
		return res
	}

	name := e.store.PlayerName(playerID)
	return res.WithResulting(Log{
		Message: fmt.Sprintf("%s drew %d %s card(s)", name, len(drawn), eff.CardType),
		Level:   LogLevelInfo,
		Source:  source,
	})
}

func (e *EffectEngine) applyCardDiscard(eff CardDiscard, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeCardDiscard, "No player specified for card discard")
	}
	source := eff.Source
	if source == "" {
		source = ectx.Source
	}
	reason := eff.Reason
	if reason == "" {
		reason = fmt.Sprintf("Effect from %s", source)
	}

	cardIDs := eff.CardIDs
	if len(cardIDs) == 0 && eff.Count > 0 {
		hand, err := e.cards.PlayerCards(playerID, eff.CardType)
		if err != nil {
			return failureResult(EffectTypeCardDiscard, err.Error())
		}
		n := eff.Count
		if n > len(hand) {
			n = len(hand)
		}
		cardIDs = hand[:n]
	}
	if len(cardIDs) == 0 {
		// Nothing in hand to discard; treated as success by omission.
		e.logger.Debug("card discard resolved to nothing",
			zap.String("player_id", playerID),
			zap.String("card_type", string(eff.CardType)),
			zap.String("source", source))
		return successResult(EffectTypeCardDiscard).WithData("cardIds", []string{})
	}

	if err := e.cards.DiscardCards(playerID, cardIDs, source, reason); err != nil {
		return failureResult(EffectTypeCardDiscard, err.Error())
	}
	return successResult(EffectTypeCardDiscard).WithData("cardIds", cardIDs)
}

func (e *EffectEngine) applyChoice(ctx context.Context, eff Choice, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeChoice, "No player specified for choice")
	}
	kind := eff.Kind
	if kind == "" {
		kind = "GENERAL"
	}

	selected, err := e.choices.CreateChoice(ctx, playerID, kind, eff.Prompt, eff.Options)
	if err != nil {
		return failureResult(EffectTypeChoice, err.Error())
	}

	label := selected
	for _, opt := range eff.Options {
		if opt.ID == selected {
			label = opt.Label
			break
		}
	}
	name := e.store.PlayerName(playerID)
	return successResult(EffectTypeChoice).
		WithData("selectionId", selected).
		WithResulting(Log{
			Message: fmt.Sprintf("%s chose: %s", name, label),
			Level:   LogLevelInfo,
			Source:  firstNonEmpty(eff.Source, ectx.Source),
		})
}

func (e *EffectEngine) applyLog(eff Log, ectx EffectContext) EffectResult {
	fields := []zap.Field{
		zap.String("source", firstNonEmpty(eff.Source, ectx.Source)),
		zap.String("trigger", string(ectx.TriggerEvent)),
	}
	if ectx.PlayerID != "" {
		fields = append(fields, zap.String("player", e.store.PlayerName(ectx.PlayerID)))
	}
	switch eff.Level {
	case LogLevelError:
		e.logger.Error(eff.Message, fields...)
	case LogLevelWarn:
		e.logger.Warn(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
	return successResult(EffectTypeLog)
}

func (e *EffectEngine) applyPlayerMovement(ctx context.Context, eff PlayerMovement, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypePlayerMovement, "No player specified for movement")
	}
	if err := e.movement.MovePlayer(ctx, playerID, eff.DestinationSpace); err != nil {
		return failureResult(EffectTypePlayerMovement, err.Error())
	}
	name := e.store.PlayerName(playerID)
	return successResult(EffectTypePlayerMovement).
		WithData("destination", eff.DestinationSpace).
		WithResulting(Log{
			Message: fmt.Sprintf("%s moved to %s", name, eff.DestinationSpace),
			Level:   LogLevelInfo,
			Source:  firstNonEmpty(eff.Source, ectx.Source),
		})
}

func (e *EffectEngine) applyTurnControl(eff TurnControl, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeTurnControl, "No player specified for turn control")
	}

	switch eff.Action {
	case TurnActionSkipTurn:
		tc := e.turnController()
		if tc == nil {
			return failureResult(EffectTypeTurnControl, "Turn service not available")
		}
		turns := eff.SkipTurns
		if turns <= 0 {
			turns = 1
		}
		if err := tc.SetSkipTurns(playerID, turns); err != nil {
			return failureResult(EffectTypeTurnControl, err.Error())
		}
		return successResult(EffectTypeTurnControl).WithData("skipTurns", turns)
	case TurnActionGrantReroll:
		// Merge into existing modifiers: skip turns already owed stay.
		err := e.store.UpdatePlayer(playerID, func(p *Player) {
			p.TurnModifiers.CanReRoll = true
		})
		if err != nil {
			return failureResult(EffectTypeTurnControl, err.Error())
		}
		return successResult(EffectTypeTurnControl).WithData("canReRoll", true)
	default:
		// Recognized shape, unsupported action: log and move on.
		e.logger.Info("unsupported turn control action ignored",
			zap.String("action", eff.Action),
			zap.String("player_id", playerID),
			zap.String("source", firstNonEmpty(eff.Source, ectx.Source)))
		return successResult(EffectTypeTurnControl)
	}
}

func (e *EffectEngine) applyCardActivation(eff CardActivation, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeCardActivation, "No player specified for card activation")
	}
	if err := e.cards.ActivateCard(playerID, eff.CardID, eff.Duration); err != nil {
		return failureResult(EffectTypeCardActivation, err.Error())
	}
	return successResult(EffectTypeCardActivation).WithData("cardId", eff.CardID)
}

func (e *EffectEngine) applyGroupTargeted(ctx context.Context, eff EffectGroupTargeted, ectx EffectContext, depth int) EffectResult {
	targets, err := e.targets.ResolveTargets(ctx, ectx.PlayerID, eff.TargetRule)
	if err != nil {
		return failureResult(EffectTypeGroupTargeted, fmt.Sprintf("Target resolution failed: %v", err))
	}
	if len(targets) == 0 {
		// No one to target, e.g. a solo game: vacuous success.
		e.logger.Debug("targeted effect resolved no targets",
			zap.String("target_rule", eff.TargetRule),
			zap.String("source", ectx.Source))
		return successResult(EffectTypeGroupTargeted).WithData("targets", []string{})
	}

	perTarget := make([]Effect, 0, len(targets))
	for _, target := range targets {
		perTarget = append(perTarget, effectForPlayer(eff.Template, target))
	}

	sub := e.processBatch(ctx, perTarget, ectx.WithSourceSuffix(":targeted"), depth+1)

	res := EffectResult{
		Success:    sub.Success,
		EffectType: EffectTypeGroupTargeted,
	}
	res = res.WithData("targets", targets).WithData("processed", sub.TotalEffects)
	if !sub.Success {
		res.Error = fmt.Sprintf("%d of %d targeted effects failed", sub.FailedEffects, sub.TotalEffects)
	}
	return res
}

func (e *EffectEngine) applyRecalculateScope(eff RecalculateScope, ectx EffectContext) EffectResult {
	// Scope is computed live from work cards, so there is nothing to
	// recalculate. Kept for cards that still carry the effect.
	e.logger.Debug("recalculate scope is a no-op",
		zap.String("player_id", resolvePlayer(eff.PlayerID, ectx)))
	return successResult(EffectTypeRecalculateScope)
}

func (e *EffectEngine) applyConditional(ctx context.Context, eff ConditionalEffect, ectx EffectContext, depth int) EffectResult {
	if !ectx.HasDiceRoll() {
		return failureResult(EffectTypeConditional, "No dice roll provided for conditional effect")
	}
	if eff.PlayerID != "" {
		ectx = ectx.ForPlayer(eff.PlayerID)
	}

	for _, r := range eff.Ranges {
		if ectx.DiceRoll < r.Min || ectx.DiceRoll > r.Max {
			continue
		}
		sub := e.processBatch(ctx, r.Effects, ectx, depth+1)
		res := EffectResult{
			Success:    sub.Success,
			EffectType: EffectTypeConditional,
		}
		res = res.WithData("matchedRange", fmt.Sprintf("%d-%d", r.Min, r.Max)).
			WithData("processed", sub.TotalEffects)
		if !sub.Success {
			res.Error = fmt.Sprintf("%d of %d conditional effects failed", sub.FailedEffects, sub.TotalEffects)
		}
		return res
	}

	// No range covers the roll: nothing happens, and that is fine.
	e.logger.Debug("conditional effect matched no range",
		zap.Int("dice_roll", ectx.DiceRoll),
		zap.String("source", ectx.Source))
	return successResult(EffectTypeConditional).WithData("matchedRange", "")
}

func (e *EffectEngine) applyChoiceOfEffects(ctx context.Context, eff ChoiceOfEffects, ectx EffectContext, depth int) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeChoiceOfEffects, "No player specified for effect choice")
	}

	options := make([]ChoiceOption, len(eff.Options))
	for i, opt := range eff.Options {
		options[i] = ChoiceOption{ID: fmt.Sprintf("option_%d", i), Label: opt.Label}
	}

	selected, err := e.choices.CreateChoice(ctx, playerID, "EFFECT_SELECTION", eff.Prompt, options)
	if err != nil {
		return failureResult(EffectTypeChoiceOfEffects, err.Error())
	}

	chosen := -1
	for i := range options {
		if options[i].ID == selected {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return failureResult(EffectTypeChoiceOfEffects, fmt.Sprintf("Invalid selection %q", selected))
	}

	bundle := eff.Options[chosen]
	sub := e.processBatch(ctx, bundle.Effects, ectx.WithSource(fmt.Sprintf("choice:%s", bundle.Label)).ForPlayer(playerID), depth+1)

	res := EffectResult{
		Success:    sub.Success,
		EffectType: EffectTypeChoiceOfEffects,
	}
	res = res.WithData("selection", bundle.Label).WithData("processed", sub.TotalEffects)
	if !sub.Success {
		res.Error = fmt.Sprintf("%d of %d chosen effects failed", sub.FailedEffects, sub.TotalEffects)
	}
	return res
}

func (e *EffectEngine) applyPlayCard(ctx context.Context, eff PlayCard, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypePlayCard, "No player specified for card play")
	}

	if eff.AutoPlayed {
		// The card never went through the normal play path, so its effects
		// have not been applied yet. Applying and finalizing here is what
		// keeps auto-played cards from being processed twice.
		if err := e.cards.ApplyCardEffects(ctx, playerID, eff.CardID); err != nil {
			return failureResult(EffectTypePlayCard, err.Error())
		}
	}
	if err := e.cards.FinalizePlayedCard(playerID, eff.CardID); err != nil {
		return failureResult(EffectTypePlayCard, err.Error())
	}

	if e.bus != nil {
		evt := events.New(events.EventCardPlayed, e.store.GameID(), playerID, eff.CardID)
		if eff.AutoPlayed {
			evt.Metadata["auto_played"] = "true"
		}
		e.bus.Publish(evt)
	}
	return successResult(EffectTypePlayCard).WithData("cardId", eff.CardID)
}

func (e *EffectEngine) applyInitiateNegotiation(ctx context.Context, eff InitiateNegotiation, ectx EffectContext) EffectResult {
	svc := e.negotiationService()
	if svc == nil {
		return failureResult(EffectTypeInitiateNegotiation, "Negotiation service not available")
	}
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeInitiateNegotiation, "No player specified for negotiation")
	}

	out := svc.Initiate(ctx, playerID, eff.PartnerID)
	if !out.Success {
		return failureResult(EffectTypeInitiateNegotiation, out.Message)
	}
	return successResult(EffectTypeInitiateNegotiation).WithData("negotiationId", out.NegotiationID)
}

func (e *EffectEngine) applyNegotiationResponse(ctx context.Context, eff NegotiationResponse, ectx EffectContext) EffectResult {
	svc := e.negotiationService()
	if svc == nil {
		return failureResult(EffectTypeNegotiationResponse, "Negotiation service not available")
	}
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeNegotiationResponse, "No player specified for negotiation response")
	}

	out := svc.Respond(ctx, eff.NegotiationID, playerID, eff.Response, eff.Offer)
	if !out.Success {
		return failureResult(EffectTypeNegotiationResponse, out.Message)
	}
	return successResult(EffectTypeNegotiationResponse).WithData("negotiationId", out.NegotiationID)
}

func (e *EffectEngine) applyAgreementRequired(ctx context.Context, eff PlayerAgreementRequired, ectx EffectContext) EffectResult {
	initiator := resolvePlayer(eff.PlayerID, ectx)
	if initiator == "" {
		return failureResult(EffectTypePlayerAgreementRequired, "No player specified for agreement")
	}
	rule := eff.TargetRule
	if rule == "" {
		rule = "ALL_OTHER_PLAYERS"
	}

	targets, err := e.targets.ResolveTargets(ctx, initiator, rule)
	if err != nil {
		return failureResult(EffectTypePlayerAgreementRequired, fmt.Sprintf("Target resolution failed: %v", err))
	}
	if len(targets) == 0 {
		return successResult(EffectTypePlayerAgreementRequired).WithData("allAccepted", true)
	}

	agreementOptions := []ChoiceOption{
		{ID: "accept", Label: "Accept"},
		{ID: "decline", Label: "Decline"},
	}
	responses := make(map[string]bool, len(targets))
	allAccepted := true
	for _, target := range targets {
		selected, err := e.choices.CreateChoice(ctx, target, "AGREEMENT", eff.Prompt, agreementOptions)
		if err != nil {
			return failureResult(EffectTypePlayerAgreementRequired, fmt.Sprintf("Agreement collection failed: %v", err))
		}
		accepted := selected == "accept"
		responses[target] = accepted
		if !accepted {
			allAccepted = false
		}
	}

	return successResult(EffectTypePlayerAgreementRequired).
		WithData("responses", responses).
		WithData("allAccepted", allAccepted).
		WithResulting(Log{
			Message: fmt.Sprintf("Agreement %q collected from %s", eff.Prompt, e.targets.DescribeTargets(targets)),
			Level:   LogLevelInfo,
			Source:  firstNonEmpty(eff.Source, ectx.Source),
		})
}

func (e *EffectEngine) applyFeeDeduction(eff FeeDeduction, ectx EffectContext) EffectResult {
	playerID := resolvePlayer(eff.PlayerID, ectx)
	if playerID == "" {
		return failureResult(EffectTypeFeeDeduction, "No player specified for fee deduction")
	}
	source := firstNonEmpty(eff.Source, ectx.Source)
	reason := eff.Reason
	if reason == "" {
		reason = "Fee assessment"
	}

	rule := eff.Rule
	if rule == nil {
		rule = ParseFeeDescription(eff.FeeDescription)
		if rule == nil {
			// Older data carries descriptions we cannot interpret; charge
			// nothing rather than guess.
			e.logger.Warn("unparseable fee description, charging nothing",
				zap.String("player_id", playerID),
				zap.String("description", eff.FeeDescription),
				zap.String("source", source))
			return successResult(EffectTypeFeeDeduction).WithData("assessed", 0)
		}
	}

	if rule.Kind == FeeKindDice {
		// The actual charge arrives through the dice outcome pipeline.
		e.logger.Info("dice-based fee deferred to dice outcome",
			zap.String("player_id", playerID),
			zap.String("source", source))
		return successResult(EffectTypeFeeDeduction).WithData("assessed", 0)
	}

	principal, err := e.ledger.OutstandingPrincipal(playerID)
	if err != nil {
		return failureResult(EffectTypeFeeDeduction, err.Error())
	}
	amount := rule.Assess(principal)
	if amount <= 0 {
		return successResult(EffectTypeFeeDeduction).WithData("assessed", 0)
	}

	if err := e.ledger.SpendMoney(playerID, amount, source, reason, "fee"); err != nil {
		return failureResult(EffectTypeFeeDeduction, err.Error())
	}
	e.checkBankruptcy(playerID)

	if e.bus != nil {
		e.bus.Publish(events.NewWithAmount(events.EventFeeCharged, e.store.GameID(), playerID, source, amount))
	}
	return successResult(EffectTypeFeeDeduction).WithData("assessed", amount)
}

// ProcessEffectsWithTargeting expands a batch across every player a target
// rule resolves to. Each effect is deep-copied and retargeted per player;
// overall success requires every per-target execution to succeed.
func (e *EffectEngine) ProcessEffectsWithTargeting(ctx context.Context, effects []Effect, ectx EffectContext, targetRule string) BatchEffectResult {
	if targetRule == "" {
		targetRule = "Self"
	}

	targets, err := e.targets.ResolveTargets(ctx, ectx.PlayerID, targetRule)
	if err != nil {
		var batch BatchEffectResult
		msg := fmt.Sprintf("Target resolution failed: %v", err)
		for _, effect := range effects {
			batch.add(failureResult(effect.Type(), msg))
		}
		return batch.finalize()
	}
	if len(targets) == 0 {
		var batch BatchEffectResult
		return batch.finalize()
	}

	e.logger.Debug("processing effects with targeting",
		zap.String("target_rule", targetRule),
		zap.Int("effects", len(effects)),
		zap.Int("targets", len(targets)),
		zap.Int("total_expected", len(effects)*len(targets)))

	var batch BatchEffectResult
	sctx := ectx.WithSourceSuffix(":targeting:" + targetRule)
	for _, target := range targets {
		retargeted := make([]Effect, len(effects))
		for i, effect := range effects {
			retargeted[i] = effectForPlayer(effect, target)
		}
		sub := e.processBatch(ctx, retargeted, sctx.ForPlayer(target), 1)
		batch.merge(sub)
	}
	return batch.finalize()
}

// ProcessCardEffects is the full card pipeline: durational cards store their
// effects for later turns, everything else fans out per the card's target
// rule and executes now.
func (e *EffectEngine) ProcessCardEffects(ctx context.Context, effects []Effect, ectx EffectContext, meta *CardMetadata) BatchEffectResult {
	if meta.Durational() {
		return e.storeEffectsForDuration(ctx, effects, ectx, meta)
	}
	rule := "Self"
	if meta != nil && meta.Target != "" {
		rule = meta.Target
	}
	return e.ProcessEffectsWithTargeting(ctx, effects, ectx, rule)
}

// ProcessEffectsWithDuration branches on duration only: durational metadata
// stores the effects, otherwise they run as a plain batch.
func (e *EffectEngine) ProcessEffectsWithDuration(ctx context.Context, effects []Effect, ectx EffectContext, meta *CardMetadata) BatchEffectResult {
	if meta.Durational() {
		return e.storeEffectsForDuration(ctx, effects, ectx, meta)
	}
	return e.processBatch(ctx, effects, ectx, 0)
}
