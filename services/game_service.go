// services/game_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/whotserver/broadcast"
	"github.com/wfunc/whotserver/cache"
	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/models"
	"github.com/wfunc/whotserver/monitor"
	"github.com/wfunc/whotserver/network"
	"github.com/wfunc/whotserver/persistence"
	"github.com/wfunc/whotserver/room"
	"github.com/wfunc/whotserver/shuffle"
	"github.com/wfunc/whotserver/state"
	"github.com/wfunc/whotserver/timer"
)

// actionCreate labels metrics for CreateGame, which is not a room action.
const actionCreate = "create"

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrAssetNotAllowed = errors.New("stake asset not allowed")
	ErrNoOpenGame      = errors.New("no open game")
)

// RandomnessOracle delivers the value that deals a full roster.
type RandomnessOracle interface {
	Request(gameID string, seed uint64, deliver func([32]byte)) error
	Cancel(gameID string)
}

// Options 游戏服务配置
type Options struct {
	Hasher            shuffle.Hasher
	AllowedAssets     []string
	DefaultWaitWindow time.Duration
	OpTimeout         time.Duration // bound for store writes made from room callbacks
}

// GameService runs every game operation through its room, moving stake through the
// ledger in the same critical section. It also listens to room lifecycle events to
// request randomness, keep the live cache and the store current, and announce
// overdue turns.
type GameService struct {
	rooms       *room.Manager
	store       persistence.Database
	ledger      persistence.Ledger
	cache       cache.GameCache
	oracle      RandomnessOracle
	timers      *timer.TimerManager
	monitor     *monitor.Monitor
	broadcaster broadcast.Broadcaster
	opts        Options
	assets      map[string]bool
	now         func() time.Time
}

func NewGameService(
	rooms *room.Manager,
	store persistence.Database,
	ledger persistence.Ledger,
	gameCache cache.GameCache,
	oracle RandomnessOracle,
	timers *timer.TimerManager,
	mon *monitor.Monitor,
	broadcaster broadcast.Broadcaster,
	opts Options,
) *GameService {
	if opts.Hasher == nil {
		opts.Hasher = shuffle.SHA256
	}
	if opts.DefaultWaitWindow == 0 {
		opts.DefaultWaitWindow = engine.MinWaitWindow
	}
	if opts.OpTimeout == 0 {
		opts.OpTimeout = 5 * time.Second
	}
	assets := make(map[string]bool, len(opts.AllowedAssets))
	for _, a := range opts.AllowedAssets {
		assets[a] = true
	}
	return &GameService{
		rooms:       rooms,
		store:       store,
		ledger:      ledger,
		cache:       gameCache,
		oracle:      oracle,
		timers:      timers,
		monitor:     mon,
		broadcaster: broadcaster,
		opts:        opts,
		assets:      assets,
		now:         time.Now,
	}
}

// CreateParams 创建游戏参数
type CreateParams struct {
	EntryStake  uint64
	StakeAsset  string
	PlayerCount int
	WaitWindow  time.Duration // 0 selects the default
	Seed        uint64
}

// CreateGame opens a game with owner seated first, taking the owner's stake.
func (s *GameService) CreateGame(ctx context.Context, owner, displayName string, p CreateParams) (*room.Room, error) {
	if !s.assets[p.StakeAsset] {
		err := fmt.Errorf("%w: %q", ErrAssetNotAllowed, p.StakeAsset)
		s.reject(actionCreate, owner, err)
		return nil, err
	}
	if p.WaitWindow == 0 {
		p.WaitWindow = s.opts.DefaultWaitWindow
	}

	id := uuid.New().String()
	g, err := engine.NewGame(id, engine.Identity(owner), displayName, engine.Params{
		Seed:        p.Seed,
		EntryStake:  p.EntryStake,
		StakeAsset:  p.StakeAsset,
		PlayerCount: p.PlayerCount,
		WaitWindow:  p.WaitWindow,
	}, s.now())
	if err != nil {
		s.reject(actionCreate, owner, err)
		return nil, err
	}

	if err := s.debit(ctx, owner, g.StakeAsset, g.EntryStake, id); err != nil {
		s.reject(actionCreate, owner, err)
		return nil, err
	}
	if err := s.store.SaveGame(ctx, g); err != nil {
		s.refund(ctx, owner, g.StakeAsset, g.EntryStake, id)
		return nil, fmt.Errorf("save game %s: %w", id, err)
	}

	r, err := s.host(g)
	if err != nil {
		s.refund(ctx, owner, g.StakeAsset, g.EntryStake, id)
		return nil, err
	}
	s.monitor.IncAction(actionCreate)
	logger.Log.Infof("玩家 %s 创建游戏 %s (%d x %d %s)", owner, id, g.PlayerCount, g.EntryStake, g.StakeAsset)
	s.announce(r)
	return r, nil
}

// announce tells every connected session that a game is taking players.
func (s *GameService) announce(r *room.Room) {
	data, err := json.Marshal(r.View(""))
	if err != nil {
		return
	}
	if err := s.broadcaster.BroadcastToAll(network.MsgTypeGameOpened, data); err != nil {
		logger.Log.Debugf("announce game %s: %v", r.ID, err)
	}
}

// QuickJoin seats identity in the oldest hosted game staked in asset that still
// takes players.
func (s *GameService) QuickJoin(ctx context.Context, identity, displayName, asset string) (*room.Room, state.Result, error) {
	if !s.assets[asset] {
		return nil, state.Result{}, fmt.Errorf("%w: %q", ErrAssetNotAllowed, asset)
	}
	r := s.rooms.FindAvailableRoom(asset, identity)
	if r == nil {
		return nil, state.Result{}, fmt.Errorf("%w for %s", ErrNoOpenGame, asset)
	}
	res, err := s.Join(ctx, r.ID, identity, displayName)
	if err != nil {
		return nil, res, err
	}
	return r, res, nil
}

// Join seats identity in gameID after taking their stake.
func (s *GameService) Join(ctx context.Context, gameID, identity, displayName string) (state.Result, error) {
	r, err := s.Room(ctx, gameID)
	if err != nil {
		return state.Result{}, err
	}
	asset := r.Snapshot().StakeAsset
	if !s.assets[asset] {
		return state.Result{}, fmt.Errorf("%w: %q", ErrAssetNotAllowed, asset)
	}
	return s.apply(r, state.Action{
		Type:        state.ActionJoin,
		Identity:    engine.Identity(identity),
		DisplayName: displayName,
		Settle: func(amount uint64) error {
			return s.debit(ctx, identity, asset, amount, gameID)
		},
	})
}

// Leave removes identity before the deal and refunds their stake.
func (s *GameService) Leave(ctx context.Context, gameID, identity string) (state.Result, error) {
	r, err := s.Room(ctx, gameID)
	if err != nil {
		return state.Result{}, err
	}
	asset := r.Snapshot().StakeAsset
	return s.apply(r, state.Action{
		Type:     state.ActionLeave,
		Identity: engine.Identity(identity),
		Settle: func(amount uint64) error {
			return s.ledger.Credit(ctx, identity, asset, amount, gameID)
		},
	})
}

// DeliverRandomness deals the game. It is the oracle's callback.
func (s *GameService) DeliverRandomness(gameID string, value [32]byte) error {
	r, ok := s.rooms.GetRoom(gameID)
	if !ok {
		return ErrGameNotFound
	}
	_, err := s.apply(r, state.Action{Type: state.ActionRandomness, Randomness: value})
	return err
}

func (s *GameService) Play(ctx context.Context, gameID, identity string, c card.Card) (state.Result, error) {
	return s.act(ctx, gameID, state.Action{Type: state.ActionPlay, Identity: engine.Identity(identity), Card: c})
}

func (s *GameService) Draw(ctx context.Context, gameID, identity string) (state.Result, error) {
	return s.act(ctx, gameID, state.Action{Type: state.ActionDraw, Identity: engine.Identity(identity)})
}

// Penalize reports in Result.Penalized whether a card was actually dealt.
func (s *GameService) Penalize(ctx context.Context, gameID, identity string) (state.Result, error) {
	return s.act(ctx, gameID, state.Action{Type: state.ActionPenalize, Identity: engine.Identity(identity)})
}

// Claim pays identity what the ended game owes them. Fully paid games are no longer
// hosted; claims against them are answered from the store.
func (s *GameService) Claim(ctx context.Context, gameID, identity string) (state.Result, error) {
	r, err := s.Room(ctx, gameID)
	var paid *paidGameError
	if errors.As(err, &paid) {
		_, err = paid.game.ClaimAmount(engine.Identity(identity))
		s.reject(state.ActionClaim, identity, err)
		return state.Result{}, err
	}
	if err != nil {
		return state.Result{}, err
	}
	asset := r.Snapshot().StakeAsset
	return s.apply(r, state.Action{
		Type:     state.ActionClaim,
		Identity: engine.Identity(identity),
		Settle: func(amount uint64) error {
			return s.ledger.Credit(ctx, identity, asset, amount, gameID)
		},
	})
}

// Game returns the view of gameID for viewer.
func (s *GameService) Game(ctx context.Context, gameID, viewer string) (models.GameView, error) {
	r, err := s.Room(ctx, gameID)
	var paid *paidGameError
	if errors.As(err, &paid) {
		return models.NewGameView(paid.game, viewer), nil
	}
	if err != nil {
		return models.GameView{}, err
	}
	return r.View(viewer), nil
}

// ListGames returns the public view of every hosted game that still takes players.
// An empty asset matches all.
func (s *GameService) ListGames(asset string) []models.GameView {
	views := make([]models.GameView, 0)
	for _, r := range s.rooms.List() {
		if !r.Open() {
			continue
		}
		v := r.View("")
		if asset != "" && v.StakeAsset != asset {
			continue
		}
		views = append(views, v)
	}
	return views
}

// paidGameError reports a game that ended and paid out everything it owed.
type paidGameError struct {
	game *engine.Game
}

func (e *paidGameError) Error() string { return fmt.Sprintf("game %s is settled", e.game.ID) }

func (e *paidGameError) Unwrap() error { return engine.ErrGameAlreadyEnded }

// Room finds a hosted room, loading it from the store when this process does not
// host it yet. Fully paid games are not hosted again.
func (s *GameService) Room(ctx context.Context, gameID string) (*room.Room, error) {
	if r, ok := s.rooms.GetRoom(gameID); ok {
		return r, nil
	}
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Paid() {
		return nil, &paidGameError{game: g}
	}
	r, err := s.host(g)
	if errors.Is(err, room.ErrRoomExists) {
		if r, ok := s.rooms.GetRoom(gameID); ok {
			return r, nil
		}
	}
	return r, err
}

// Restore hosts every open game in the store. Delegated games come from the live
// cache when it has them.
func (s *GameService) Restore(ctx context.Context) (int, error) {
	games, err := s.store.LoadOpenGames(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range games {
		if g.Delegated {
			if live, err := s.cache.Get(ctx, g.ID); err == nil {
				g = live
			}
		}
		if _, err := s.host(g); err != nil {
			logger.Log.Warnf("恢复游戏 %s 失败: %v", g.ID, err)
			continue
		}
		n++
	}
	logger.Log.Infof("恢复了 %d 局游戏", n)
	return n, nil
}

func (s *GameService) load(ctx context.Context, gameID string) (*engine.Game, error) {
	g, err := s.store.LoadGame(ctx, gameID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.Delegated {
		if live, err := s.cache.Get(ctx, gameID); err == nil {
			return live, nil
		}
	}
	return g, nil
}

func (s *GameService) host(g *engine.Game) (*room.Room, error) {
	r, err := s.rooms.CreateRoom(g, s.broadcaster,
		room.WithHasher(s.opts.Hasher),
		room.WithListener(s),
		room.WithClock(func() time.Time { return s.now() }),
	)
	if err != nil {
		return nil, err
	}
	s.monitor.SetActiveGames(s.rooms.Count())
	return r, nil
}

func (s *GameService) act(ctx context.Context, gameID string, a state.Action) (state.Result, error) {
	r, err := s.Room(ctx, gameID)
	if err != nil {
		return state.Result{}, err
	}
	return s.apply(r, a)
}

func (s *GameService) apply(r *room.Room, a state.Action) (state.Result, error) {
	start := time.Now()
	res, err := r.Apply(a)
	s.monitor.ObserveMessageLatency(time.Since(start))
	if err != nil {
		s.reject(a.Type, string(a.Identity), err)
		return res, err
	}
	return res, nil
}

func (s *GameService) reject(t state.ActionType, identity string, err error) {
	if err == nil {
		return
	}
	s.monitor.IncRejection(string(t))
	logger.Log.Warnf("拒绝 %s (%s): %v", t, identity, err)
}

// debit takes a stake, reporting a short balance as the engine's stake error.
func (s *GameService) debit(ctx context.Context, identity, asset string, amount uint64, ref string) error {
	err := s.ledger.Debit(ctx, identity, asset, amount, ref)
	if errors.Is(err, persistence.ErrInsufficientFunds) {
		return fmt.Errorf("%w: %v", engine.ErrInsufficientStake, err)
	}
	return err
}

func (s *GameService) refund(ctx context.Context, identity, asset string, amount uint64, ref string) {
	if err := s.ledger.Credit(ctx, identity, asset, amount, ref); err != nil {
		logger.Log.Errorf("退还 %s 押金失败 (%s): %v", identity, ref, err)
	}
}

// --- state.Listener ---
// Callbacks run under the room lock and must not re-enter the room.

func (s *GameService) OnRosterFull(g *engine.Game) {
	gameID := g.ID
	err := s.oracle.Request(gameID, g.Seed, func(value [32]byte) {
		if err := s.DeliverRandomness(gameID, value); err != nil {
			logger.Log.Warnf("游戏 %s 随机数未被接受: %v", gameID, err)
		}
	})
	if err != nil {
		logger.Log.Errorf("游戏 %s 请求随机数失败: %v", gameID, err)
	}
}

func (s *GameService) OnGameStarted(g *engine.Game) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.OpTimeout)
	defer cancel()

	if err := s.cache.Put(ctx, g); err != nil {
		logger.Log.Errorf("游戏 %s 写入缓存失败: %v", g.ID, err)
	}
	if err := s.store.SaveGame(ctx, g); err != nil {
		logger.Log.Errorf("游戏 %s 保存失败: %v", g.ID, err)
	}
	s.watchTurn(g)
}

func (s *GameService) OnActionApplied(g *engine.Game, a state.Action, res state.Result) {
	s.monitor.IncAction(string(a.Type))
	if res.Penalized {
		s.monitor.IncPenalty()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.OpTimeout)
	defer cancel()

	// 委托期间只写缓存
	if g.Delegated && !g.Ended() {
		if err := s.cache.Put(ctx, g); err != nil {
			logger.Log.Errorf("游戏 %s 写入缓存失败: %v", g.ID, err)
		}
	} else if err := s.store.SaveGame(ctx, g); err != nil {
		logger.Log.Errorf("游戏 %s 保存失败: %v", g.ID, err)
	}

	switch {
	case a.Type == state.ActionLeave:
		s.oracle.Cancel(g.ID)
	case g.Phase == engine.PhaseActive:
		s.watchTurn(g)
	case a.Type == state.ActionClaim:
		s.retireIfPaid(g)
	}
}

func (s *GameService) OnGameEnded(g *engine.Game) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.OpTimeout)
	defer cancel()

	s.timers.Cancel(overdueKey(g.ID))
	s.oracle.Cancel(g.ID)

	if err := s.store.SaveGame(ctx, g); err != nil {
		logger.Log.Errorf("游戏 %s 提交失败: %v", g.ID, err)
	}
	record := models.NewGameRecord(g)
	if err := s.store.SaveGameRecord(ctx, &record); err != nil {
		logger.Log.Errorf("游戏 %s 记录保存失败: %v", g.ID, err)
	}
	if err := s.cache.Delete(ctx, g.ID); err != nil {
		logger.Log.Warnf("游戏 %s 删除缓存失败: %v", g.ID, err)
	}
	s.monitor.IncOutcome(string(g.Outcome.Kind))
	s.retireIfPaid(g)
}

// retireIfPaid stops hosting a game that owes nothing more.
func (s *GameService) retireIfPaid(g *engine.Game) {
	if !g.Paid() {
		return
	}
	s.rooms.RemoveRoom(g.ID)
	s.monitor.SetActiveGames(s.rooms.Count())
	logger.Log.Infof("游戏 %s 已全部结算", g.ID)
}

func overdueKey(gameID string) string {
	return "overdue:" + gameID
}

// watchTurn announces the current turn as overdue once its wait window passes,
// unless a move lands first.
func (s *GameService) watchTurn(g *engine.Game) {
	deadline := g.Deadline()
	gameID, seat := g.ID, g.CurrentTurn
	delay := deadline.Sub(s.now()) + time.Millisecond

	s.timers.Schedule(overdueKey(gameID), delay, func() {
		r, ok := s.rooms.GetRoom(gameID)
		if !ok {
			return
		}
		cur := r.Snapshot()
		if cur.CurrentTurn != seat || !cur.Overdue(s.now()) {
			return
		}
		p, _ := cur.CurrentPlayer()
		data, err := json.Marshal(network.TurnOverdue{
			GameID:   gameID,
			Seat:     seat,
			Identity: string(p.Identity),
			Deadline: cur.Deadline(),
		})
		if err != nil {
			return
		}
		// 通知所有在座玩家, 包括未绑定到房间的会话
		seated := make([]string, 0, len(cur.Players))
		for _, pl := range cur.Players {
			seated = append(seated, string(pl.Identity))
		}
		if err := s.broadcaster.BroadcastToUsers(seated, network.MsgTypeTurnOverdue, data); err != nil {
			logger.Log.Debugf("overdue notice for %s: %v", gameID, err)
		}
	})
}
