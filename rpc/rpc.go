package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/rpc"
	"strings"
	"time"

	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/models"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/services"
)

var ErrRoomNotFound = errors.New("room not found")

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	server   *rpc.Server
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		server:   rpc.NewServer(),
	}, nil
}

func (s *Server) Register(service interface{}) error {
	return s.server.Register(service)
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.listener.Addr())
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
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

const callTimeout = 5 * time.Second

// RoomService is the admin surface over net/rpc. Methods follow the net/rpc
// signature: exported args, pointer reply, error result.
type RoomService struct {
	rooms  *room.Manager
	rounds *services.RoundService
}

func NewRoomService(rooms *room.Manager, rounds *services.RoundService) *RoomService {
	return &RoomService{rooms: rooms, rounds: rounds}
}

type ListRoomsArgs struct {
	// Prefix filters rooms by namespace prefix; empty lists all.
	Prefix string
}

type ListRoomsReply struct {
	Rooms []string
}

func (rs *RoomService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range rs.rooms.Rooms() {
		if !strings.HasPrefix(r.Namespace(), args.Prefix) {
			continue
		}
		reply.Rooms = append(reply.Rooms, r.Namespace())
	}
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	// Document is the room document encoded as JSON.
	Document  []byte
	Lifecycle string
}

func (rs *RoomService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	r, ok := rs.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		return err
	}
	reply.Document = data
	reply.Lifecycle = r.Lifecycle().String()
	return nil
}

type AddBotArgs struct {
	RoomID  string
	Options map[string]interface{}
}

type AddBotReply struct {
	ID string
}

func (rs *RoomService) AddBot(args *AddBotArgs, reply *AddBotReply) error {
	r, ok := rs.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	p, err := r.AddBot(args.Options)
	if err != nil {
		return err
	}
	reply.ID = p.ID()
	return nil
}

type RemoveParticipantArgs struct {
	RoomID        string
	ParticipantID string
}

type RemoveParticipantReply struct {
	Remaining int
}

func (rs *RoomService) RemoveParticipant(args *RemoveParticipantArgs, reply *RemoveParticipantReply) error {
	r, ok := rs.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.Remove(args.ParticipantID); err != nil {
		return err
	}
	reply.Remaining = r.Count()
	return nil
}

type RecentRoundsArgs struct {
	RoomID string
	Limit  int
}

type RecentRoundsReply struct {
	Rounds []models.RoundRecord
}

func (rs *RoomService) RecentRounds(args *RecentRoundsArgs, reply *RecentRoundsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	rounds, err := rs.rounds.RecentRounds(ctx, args.RoomID, args.Limit)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		reply.Rounds = append(reply.Rounds, *r)
	}
	return nil
}

type WinsArgs struct {
	ParticipantID string
}

type WinsReply struct {
	Wins int64
}

func (rs *RoomService) Wins(args *WinsArgs, reply *WinsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	n, err := rs.rounds.Wins(ctx, args.ParticipantID)
	if err != nil {
		return err
	}
	reply.Wins = n
	return nil
}
