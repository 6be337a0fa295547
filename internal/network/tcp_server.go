package network

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
)

const (
	// idleTimeout — соединение без входящих кадров закрывается.
	idleTimeout  = 2 * time.Minute
	writeTimeout = 5 * time.Second
)

// Lifecycle получает события подключения и отключения.
type Lifecycle interface {
	Connected(ctx context.Context, p *player.Player)
	Left(ctx context.Context, p *player.Player)
}

// TCPServer принимает игровые соединения и читает кадры.
type TCPServer struct {
	listener   net.Listener
	hub        *Hub
	guard      *guard.Guard
	dispatcher *Dispatcher
	groups     *permissions.Registry
	lifecycle  Lifecycle
	metrics    *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logging.Logger
}

// ServerDeps — коллабораторы TCP сервера. Lifecycle и Metrics необязательны.
type ServerDeps struct {
	Hub        *Hub
	Guard      *guard.Guard
	Dispatcher *Dispatcher
	Groups     *permissions.Registry
	Lifecycle  Lifecycle
	Metrics    *Metrics
}

// NewTCPServer создаёт новый TCP сервер
func NewTCPServer(address string, d ServerDeps) (*TCPServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	groups := d.Groups
	if groups == nil {
		groups = permissions.DefaultRegistry()
	}

	return &TCPServer{
		listener:   listener,
		hub:        d.Hub,
		guard:      d.Guard,
		dispatcher: d.Dispatcher,
		groups:     groups,
		lifecycle:  d.Lifecycle,
		metrics:    d.Metrics,
		ctx:        ctx,
		cancel:     cancel,
		log:        logging.GetNetworkLogger(),
	}, nil
}

// Addr — фактический адрес (удобно при порте 0).
func (s *TCPServer) Addr() net.Addr { return s.listener.Addr() }

// Start запускает TCP сервер
func (s *TCPServer) Start() {
	s.wg.Add(1)
	go s.acceptLoop()
	s.log.Info("TCP сервер слушает %s", s.listener.Addr())
}

// Stop закрывает слушатель и все соединения и ждет завершения горутин.
func (s *TCPServer) Stop() {
	s.cancel()
	s.listener.Close()
	s.hub.CloseAll()
	s.wg.Wait()
}

// acceptLoop принимает новые соединения
func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("Ошибка принятия соединения: %v", err)
			continue
		}

		tc := &tcpConn{conn: conn}
		p, err := s.hub.Join(tc, s.newPlayer(conn))
		if err != nil {
			s.metrics.serverFull()
			s.log.Warn("Отклонено соединение %s: %v", conn.RemoteAddr(), err)
			_, _ = tc.Write(protocol.Encode(&protocol.Disconnect{Reason: "Server is full."}))
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(tc, p)
	}
}

func (s *TCPServer) newPlayer(conn net.Conn) func(index int) *player.Player {
	ip := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	window := s.guard.Config().ThresholdWindow
	return func(index int) *player.Player {
		return player.New(index, ip, s.groups.Guest(), window)
	}
}

// handleConnection читает кадры соединения по порядку до ошибки или разрыва.
func (s *TCPServer) handleConnection(tc *tcpConn, p *player.Player) {
	defer s.wg.Done()
	s.metrics.connOpened()
	if s.lifecycle != nil {
		s.lifecycle.Connected(s.ctx, p)
	}
	s.log.Info("Соединение %d открыто (%s)", p.Index, p.IP)

	defer func() {
		tc.Close()
		s.hub.Leave(p.Index)
		removed := s.guard.World().RemoveConnection(p.Index)
		p.Disconnect()
		s.metrics.connClosed()
		if s.lifecycle != nil {
			s.lifecycle.Left(s.ctx, p)
		}
		s.log.Info("Соединение %d закрыто, удалено снарядов: %d", p.Index, removed)
	}()

	r := bufio.NewReader(tc.conn)
	for {
		_ = tc.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		f, err := protocol.ReadFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("Чтение кадра от %d: %v", p.Index, err)
			}
			return
		}

		res := s.dispatcher.Handle(s.ctx, p, f)
		if res.Outcome == guard.Kick {
			return
		}
	}
}

// tcpConn сериализует запись: пересылка идет из горутин других соединений.
type tcpConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *tcpConn) Write(frame []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.Write(frame)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
