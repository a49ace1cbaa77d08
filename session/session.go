// Package session implements the session state machine sitting on top of a
// transport.Client: registration, session start/close, reconnect-with-
// backoff, and the RMI/PDO request surface the bridge package builds its
// convenience verbs on.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comfoconnect/comfoconnect-go/frame"
	"github.com/comfoconnect/comfoconnect-go/pdo"
	"github.com/comfoconnect/comfoconnect-go/rmi"
	"github.com/comfoconnect/comfoconnect-go/transport"
	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// BridgePort is the TCP port every ComfoConnect LAN C bridge listens on.
const BridgePort = 56747

// DefaultRequestTimeout bounds how long each RMI attempt (and each
// reconnect attempt's Connect) waits for its reply; an RMI attempt that runs
// out fails with ErrCodeTimeout. Subscribe, Unsubscribe, Connect and
// Disconnect called directly are bounded only by the caller's context.
const DefaultRequestTimeout = 5 * time.Second

// DefaultSensorHoldDelay is how long PDO sensor callbacks are buffered after
// each (re)connect, matching original_source/aiocomfoconnect's sensor_delay.
const DefaultSensorHoldDelay = 2 * time.Second

// Config configures a Session. Host, LocalUUID, BridgeUUID and PIN are
// required; everything else has a working zero value.
type Config struct {
	Host       string
	Port       int // defaults to BridgePort when zero
	LocalUUID  [frame.UUIDSize]byte
	BridgeUUID [frame.UUIDSize]byte
	DeviceName string
	PIN        uint32

	// SkipRegistration assumes the bridge already knows LocalUUID and
	// goes straight to StartSessionRequest.
	SkipRegistration bool
	TakeOver         bool
	AutoReconnect    bool
	RequestTimeout   time.Duration
	Logger           *zap.Logger

	// HeartbeatInterval is K, the KeepAlive cadence; the transport declares
	// the connection stalled after 3K of silence. Zero uses
	// transport.DefaultHeartbeatInterval (5s).
	HeartbeatInterval time.Duration

	// RMIRetries is how many times a timed-out, transport-lost or
	// connection-refused RMI round trip is retried with exponential backoff
	// before RMI gives up.
	// Zero disables retrying.
	RMIRetries        int
	RMIRetryBaseDelay time.Duration

	// SensorHoldDelay buffers PDO sensor callbacks for this long after each
	// (re)connect, to work around the bridge briefly pushing stale values
	// right after a session starts. Defaults to 2 seconds; negative
	// disables holding.
	SensorHoldDelay time.Duration

	OnAlarm      func(zehnder.CnAlarmNotification)
	OnNodeChange func(zehnder.CnNodeNotification)
}

type subscriptionRecord struct {
	valueType rmi.ValueType
	consumer  pdo.Consumer
	dedup     bool
}

// Session drives one bridge connection through its state machine.
type Session struct {
	cfg      Config
	registry *pdo.Registry
	logger   *zap.Logger

	mu                sync.Mutex
	state             State
	client            *transport.Client
	reconnectAttempt  int
	subscriptions     map[uint32]subscriptionRecord
	reconnectCanceled bool
	lastErr           *Error
}

// New returns a Session in the Disconnected state.
func New(cfg Config) *Session {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RMIRetries > 0 && cfg.RMIRetryBaseDelay == 0 {
		cfg.RMIRetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.SensorHoldDelay == 0 {
		cfg.SensorHoldDelay = DefaultSensorHoldDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:           cfg,
		registry:      pdo.NewRegistry(),
		logger:        logger,
		state:         Disconnected,
		subscriptions: make(map[uint32]subscriptionRecord),
	}
}

// State reports the current state machine position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Connect dials the bridge, optionally registers, and starts a session.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		state := s.state
		s.mu.Unlock()
		return newError(ErrCodeWrongState, fmt.Sprintf("connect called from %s", state))
	}
	s.state = Connecting
	s.reconnectCanceled = false
	s.lastErr = nil
	s.mu.Unlock()

	port := s.cfg.Port
	if port == 0 {
		port = BridgePort
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, port))
	if err != nil {
		s.setState(Disconnected)
		return err
	}

	client := transport.NewClient(conn, s.cfg.LocalUUID, s.cfg.BridgeUUID, s.logger, s.handleNotification, s.cfg.HeartbeatInterval)
	s.mu.Lock()
	s.client = client
	s.state = Starting
	s.mu.Unlock()

	go s.watchTransport(client)

	if !s.cfg.SkipRegistration {
		req := zehnder.RegisterAppRequest{UUID: s.cfg.LocalUUID[:], PIN: s.cfg.PIN, DeviceName: s.cfg.DeviceName}
		if _, err := client.Request(ctx, zehnder.RegisterAppRequestType, req.Marshal()); err != nil {
			client.Close()
			s.setState(Disconnected)
			// A rejected registration (e.g. wrong PIN) arrives as a
			// *zehnder.GatewayError; pass it through verbatim so bridge can
			// surface the ResultCode instead of a generic session.Error.
			if _, ok := err.(*zehnder.GatewayError); ok {
				return err
			}
			return newError(ErrCodeNotRegistered, err.Error())
		}
	}

	startReq := zehnder.StartSessionRequest{TakeOver: s.cfg.TakeOver}
	if _, err := client.Request(ctx, zehnder.StartSessionRequestType, startReq.Marshal()); err != nil {
		client.Close()
		s.setState(Disconnected)
		return newError(ErrCodeNotRegistered, err.Error())
	}

	if s.cfg.SensorHoldDelay > 0 {
		s.logger.Debug("session: holding sensors", zap.Duration("delay", s.cfg.SensorHoldDelay))
		s.registry.Hold(s.cfg.SensorHoldDelay)
	}

	// Resubscriptions are sent over s.client directly rather than through
	// activeClient(), so they can go out while the state machine is still
	// Starting. Only once every PDID is resubscribed does state flip to
	// Active, so a concurrent RMI/GetProperty/SetProperty can never reach the
	// bridge ahead of its subscriptions being restored.
	s.reinstallSubscriptions(ctx)

	s.mu.Lock()
	s.state = Active
	s.reconnectAttempt = 0
	s.mu.Unlock()
	return nil
}

// Disconnect asks the bridge to close the session and tears down the
// connection.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Active {
		state := s.state
		s.mu.Unlock()
		return newError(ErrCodeWrongState, fmt.Sprintf("disconnect called from %s", state))
	}
	s.state = Closing
	s.reconnectCanceled = true
	client := s.client
	s.mu.Unlock()

	_, _ = client.Request(ctx, zehnder.CloseSessionRequestType, nil)
	client.Close()
	s.setState(Disconnected)
	return nil
}

// RMI sends a raw RMI request to nodeID and returns the raw reply bytes. A
// timeout or dropped connection is retried per cfg.RMIRetries before RMI
// gives up; a decoded RMI error (rmi.Error) never is.
func (s *Session) RMI(ctx context.Context, nodeID uint32, request []byte) ([]byte, error) {
	attempt := func(ctx context.Context) ([]byte, error) {
		client, err := s.activeClient()
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		req := zehnder.CnRmiRequest{NodeID: nodeID, Message: request}
		resp, err := client.Request(ctx, zehnder.CnRmiRequestType, req.Marshal())
		if err != nil {
			if gwErr, ok := err.(*zehnder.GatewayError); ok && gwErr.Code == zehnder.ResultRMIError && resp.Payload != nil {
				if reply, uerr := zehnder.UnmarshalCnRmiResponse(resp.Payload); uerr == nil {
					return nil, rmi.DecodeError(nodeID, request, reply.Message)
				}
			}
			select {
			case <-client.Done():
				return nil, newError(ErrCodeTransportLost, err.Error())
			default:
			}
			return nil, s.classifyErr(err)
		}
		reply, err := zehnder.UnmarshalCnRmiResponse(resp.Payload)
		if err != nil {
			return nil, err
		}
		return reply.Message, nil
	}
	return withRetry(s.cfg.RMIRetries, s.cfg.RMIRetryBaseDelay, attempt)(ctx)
}

// GetProperty issues an RMI GetSingle for (unit,subunit,prop) and decodes
// the reply per typ.
func (s *Session) GetProperty(ctx context.Context, nodeID uint32, unit rmi.Unit, subunit rmi.Subunit, prop byte, typ rmi.ValueType) (any, error) {
	raw, err := s.RMI(ctx, nodeID, rmi.GetSingle(unit, subunit, prop))
	if err != nil {
		return nil, err
	}
	return rmi.DecodeValue(raw, typ)
}

// SetProperty issues an RMI SetSingle writing value, encoded per typ.
func (s *Session) SetProperty(ctx context.Context, nodeID uint32, unit rmi.Unit, subunit rmi.Subunit, prop byte, value int64, typ rmi.ValueType) error {
	msg, err := rmi.SetSingleTyped(unit, subunit, prop, value, typ)
	if err != nil {
		return err
	}
	_, err = s.RMI(ctx, nodeID, msg)
	return err
}

// ActiveClient exposes the underlying transport for callers (namely bridge)
// that need to issue an envelope type this package doesn't wrap, such as
// ListRegisteredAppsRequest or DeregisterAppRequest.
func (s *Session) ActiveClient() (*transport.Client, error) {
	return s.activeClient()
}

func (s *Session) activeClient() (*transport.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return nil, newError(ErrCodeWrongState, fmt.Sprintf("not active (%s)", s.state))
	}
	return s.client, nil
}

func (s *Session) classifyErr(err error) error {
	if err == context.DeadlineExceeded {
		return newError(ErrCodeTimeout, "")
	}
	return err
}

func (s *Session) handleNotification(n transport.Notification) {
	switch n.Envelope.Type {
	case zehnder.CnRpdoNotificationType:
		note, err := zehnder.UnmarshalCnRpdoNotification(n.Payload)
		if err != nil {
			s.logger.Warn("session: malformed CnRpdoNotification", zap.Error(err))
			return
		}
		s.registry.Dispatch(note.PDID, note.Data)
	case zehnder.CnNodeNotificationType:
		if s.cfg.OnNodeChange == nil {
			return
		}
		note, err := zehnder.UnmarshalCnNodeNotification(n.Payload)
		if err != nil {
			s.logger.Warn("session: malformed CnNodeNotification", zap.Error(err))
			return
		}
		s.cfg.OnNodeChange(note)
	case zehnder.CnAlarmNotificationType:
		if s.cfg.OnAlarm == nil {
			return
		}
		note, err := zehnder.UnmarshalCnAlarmNotification(n.Payload)
		if err != nil {
			s.logger.Warn("session: malformed CnAlarmNotification", zap.Error(err))
			return
		}
		s.cfg.OnAlarm(note)
	case zehnder.CloseSessionRequestType:
		s.onUnsolicitedClose()
	default:
		s.logger.Debug("session: unhandled notification", zap.Int32("type", int32(n.Envelope.Type)))
	}
}

// onUnsolicitedClose handles CloseSessionNotification: the bridge, not us,
// ended the session.
func (s *Session) onUnsolicitedClose() {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	client := s.client
	autoReconnect := s.cfg.AutoReconnect && !s.reconnectCanceled
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if autoReconnect {
		go s.reconnectLoop()
	}
}

// watchTransport observes the transport breaking underneath an Active
// session (I/O error, EOF, stalled-connection watchdog) and triggers the
// same disconnect path as an unsolicited close, recording whether the cause
// was a stalled connection or a harder transport failure.
func (s *Session) watchTransport(client *transport.Client) {
	<-client.Done()

	code := ErrCodeTransportLost
	if errors.Is(client.Err(), transport.ErrStalled) {
		code = ErrCodeStalledConnection
	}

	s.mu.Lock()
	if s.state == Disconnected || s.state == Closing {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	s.lastErr = newError(code, "")
	autoReconnect := s.cfg.AutoReconnect && !s.reconnectCanceled
	s.mu.Unlock()

	if code == ErrCodeStalledConnection {
		s.logger.Info("session: stalled connection, no inbound traffic")
	} else {
		s.logger.Info("session: transport lost", zap.Error(client.Err()))
	}
	if autoReconnect {
		go s.reconnectLoop()
	}
}

// LastError returns the reason the session most recently moved to
// Disconnected on its own (transport loss, a stalled connection), or nil if
// it hasn't yet or the last transition was a caller-initiated Disconnect.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

// reconnectLoop retries Connect with exponential backoff, preserving the
// subscription set for reinstallation once the new session is Active.
func (s *Session) reconnectLoop() {
	for {
		s.mu.Lock()
		if s.reconnectCanceled || s.state != Disconnected {
			s.mu.Unlock()
			return
		}
		s.reconnectAttempt++
		attempt := s.reconnectAttempt
		s.mu.Unlock()

		delay := nextBackoff(attempt)
		s.logger.Info("session: reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		time.Sleep(delay)

		s.mu.Lock()
		if s.reconnectCanceled {
			s.mu.Unlock()
			return
		}
		s.state = Disconnected
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		s.logger.Warn("session: reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}
