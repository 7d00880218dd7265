package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/models"
	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/session"
	"github.com/wfunc/blockbattle/state"
)

const heartbeatInterval = 30 * time.Second

// MaxBoardSize bounds one board so its own state frame always fits.
const MaxBoardSize = 16 * 1024

var (
	ErrNotSeated     = errors.New("not in a room")
	ErrBadRequest    = errors.New("malformed request")
	ErrNotAccepted   = errors.New("state change refused")
	ErrBoardTooLarge = errors.New("board too large")
)

// Monitor is the part of monitor.Monitor the server reports to.
type Monitor interface {
	IncMessagesReceived()
	ObserveMessageLatency(d time.Duration)
}

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	monitor        Monitor
	httpServer     *http.Server
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(addr string, rooms *room.Manager, sessions *session.Manager, monitor Monitor) *GameServer {
	return &GameServer{
		addr:           addr,
		roomManager:    rooms,
		sessionManager: sessions,
		monitor:        monitor,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

// Handler serves the websocket endpoint at /ws.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *GameServer) Start() error {
	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(wsConn network.Connection) {
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.leave(sess)
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	sess.Touch()
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
		defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	}

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeJoinRoom:
		err = s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.leave(sess)
	case network.MsgTypeAddBot:
		err = s.handleAddBot(sess, packet)
	case network.MsgTypeSetState:
		err = s.handleSetState(sess, packet)
	case network.MsgTypeBoard:
		err = s.handleBoard(sess, packet)
	case network.MsgTypeGameOver:
		err = s.withSeat(sess, func(p *participant.Participant) error {
			return p.SetState(state.Idle)
		})
	case network.MsgTypeSpecial:
		err = s.handleSpecial(sess, packet)
	case network.MsgTypeLines:
		err = s.withSeat(sess, func(p *participant.Participant) error {
			return p.SendLines(packet.Data)
		})
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return
	}

	if err != nil {
		logger.Log.Debugf("session %s: message %d: %v", sess.GetID(), packet.MsgID, err)
		s.sendError(sess, packet.MsgID, err)
	}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) error {
	var req models.JoinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || len(req.Path) == 0 {
		return ErrBadRequest
	}

	// 一个会话只能在一个房间
	s.leave(sess)

	r, created, err := s.roomManager.GetOrCreateRoom(req.Path, req.Options, req.Rules)
	if err != nil {
		return err
	}
	if created {
		logger.Log.Infof("Session %s created room %s", sess.GetID(), r.Namespace())
	}

	opts := map[string]interface{}{}
	if req.Name != "" {
		opts[state.KeyName] = req.Name
	}
	p, err := r.Join(sess, opts)
	if err != nil {
		return err
	}
	sess.Seat(r.Namespace(), p)
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), r.Namespace())

	data, err := json.Marshal(models.JoinedResponse{
		RoomID:        r.Namespace(),
		ParticipantID: p.ID(),
		Name:          p.Name(),
	})
	if err != nil {
		return err
	}
	return sess.Send(network.MsgTypeJoined, data)
}

func (s *GameServer) handleAddBot(sess *session.Session, packet *network.Packet) error {
	var req models.BotRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return ErrBadRequest
		}
	}
	r, ok := s.roomManager.GetRoom(sess.RoomID())
	if !ok {
		return ErrNotSeated
	}
	_, err := r.AddBot(req.Options)
	return err
}

func (s *GameServer) handleSetState(sess *session.Session, packet *network.Packet) error {
	var req models.StateRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return ErrBadRequest
	}
	want, err := state.ParseParticipantState(req.State)
	if err != nil {
		return err
	}
	return s.withSeat(sess, func(p *participant.Participant) error {
		accepted, err := p.RequestState(want)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrNotAccepted
		}
		return nil
	})
}

func (s *GameServer) handleBoard(sess *session.Session, packet *network.Packet) error {
	if len(packet.Data) > MaxBoardSize {
		return ErrBoardTooLarge
	}
	var board interface{}
	if err := json.Unmarshal(packet.Data, &board); err != nil {
		return ErrBadRequest
	}
	return s.withSeat(sess, func(p *participant.Participant) error {
		return p.SetData(board)
	})
}

func (s *GameServer) handleSpecial(sess *session.Session, packet *network.Packet) error {
	var req models.SpecialRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Target == "" {
		return ErrBadRequest
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return err
	}
	return s.withSeat(sess, func(p *participant.Participant) error {
		return p.UseSpecial(req.Target, payload)
	})
}

func (s *GameServer) withSeat(sess *session.Session, fn func(p *participant.Participant) error) error {
	p, ok := sess.Participant()
	if !ok {
		logger.Log.Warnf("Session %s sent a game message but is not in a room", sess.GetID())
		return ErrNotSeated
	}
	return fn(p)
}

// leave removes the session's participant from its room, if seated.
func (s *GameServer) leave(sess *session.Session) {
	roomID, p := sess.Unseat()
	if p == nil {
		return
	}
	if err := p.Remove(); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		logger.Log.Warnf("Session %s leaving %s: %v", sess.GetID(), roomID, err)
	}
	logger.Log.Infof("Session %s left room %s", sess.GetID(), roomID)
}

func (s *GameServer) sendError(sess *session.Session, code uint16, err error) {
	data, mErr := json.Marshal(models.ErrorResponse{Code: code, Message: err.Error()})
	if mErr != nil {
		return
	}
	if sErr := sess.Send(network.MsgTypeError, data); sErr != nil {
		logger.Log.Debugf("session %s: error reply failed: %v", sess.GetID(), sErr)
	}
}
