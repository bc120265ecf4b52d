package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/whotserver/auth"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/models"
)

// callTimeout bounds each RPC call's store access.
const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the read API.
func NewServer(addr string, api *GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("GameService", api); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameReader looks games up by id.
type GameReader interface {
	Game(ctx context.Context, gameID, viewer string) (models.GameView, error)
}

// StatsReader reads player statistics.
type StatsReader interface {
	GetPlayerStats(ctx context.Context, identity string) (*models.PlayerStats, error)
}

// TokenVerifier resolves a bearer token to its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	games  GameReader
	stats  StatsReader
	tokens TokenVerifier
}

// NewGameService creates a new GameService.
func NewGameService(games GameReader, stats StatsReader, tokens TokenVerifier) *GameService {
	return &GameService{games: games, stats: stats, tokens: tokens}
}

type GetGameArgs struct {
	GameID string
	Token  string // 为空时只返回公开视图
}

type GetGameReply struct {
	Game models.GameView
}

// GetGame returns the view of a game. The caller's own hand is only revealed
// for a valid token.
// It must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
func (gs *GameService) GetGame(args *GetGameArgs, reply *GetGameReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	viewer := ""
	if args.Token != "" {
		claims, err := gs.tokens.Verify(args.Token)
		if err != nil {
			return err
		}
		viewer = claims.Subject
	}

	view, err := gs.games.Game(ctx, args.GameID, viewer)
	if err != nil {
		return err
	}
	reply.Game = view
	return nil
}

type GetPlayerStatsArgs struct {
	Identity string
}

type GetPlayerStatsReply struct {
	Stats models.PlayerStats
}

func (gs *GameService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	stats, err := gs.stats.GetPlayerStats(ctx, args.Identity)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
