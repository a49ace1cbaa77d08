// Package bridge is the façade a caller actually imports: it binds a
// session.Session to one bridge's host/uuid/PIN and exposes every
// ventilation convenience verb as a typed Go method instead of a raw RMI
// byte string, the way original_source/aiocomfoconnect/comfoconnect.py sits
// on top of its own Bridge class.
package bridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/comfoconnect/comfoconnect-go/frame"
	"github.com/comfoconnect/comfoconnect-go/pdo"
	"github.com/comfoconnect/comfoconnect-go/rmi"
	"github.com/comfoconnect/comfoconnect-go/session"
	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// NodeID is the ComfoNet node every RMI request in this package addresses:
// the ventilation unit itself, node 1 on every bridge observed in the field.
const NodeID = 1

// Config configures a Bridge. Host and BridgeUUID identify the target
// (BridgeUUID normally comes from discovery.Bridge.UUID); LocalUUID and PIN
// identify this client for registration. LocalUUID may be left zero to have
// New generate one.
type Config struct {
	Host       string
	Port       int // defaults to session.BridgePort when zero
	BridgeUUID string // hex-encoded 32-char uuid, as returned by discovery
	LocalUUID  string // hex-encoded; generated if empty
	DeviceName string
	PIN        uint32

	AutoReconnect bool
	Logger        *zap.Logger

	// RMIRate bounds outbound RMI requests per second (0 disables limiting).
	RMIRate  float64
	RMIBurst int

	// RMIRetries retries a timed-out, transport-lost or connection-refused
	// RMI round trip with exponential backoff (0 disables retrying).
	RMIRetries        int
	RMIRetryBaseDelay time.Duration

	// SensorHoldDelay buffers PDO sensor callbacks for this long after each
	// (re)connect (0 uses session.DefaultSensorHoldDelay; negative disables
	// holding entirely).
	SensorHoldDelay time.Duration

	OnAlarm      func(nodeID uint32, errors map[int]string)
	OnNodeChange func(zehnder.CnNodeNotification)
}

// Bridge is a ready-to-use client for one ComfoConnect LAN C unit.
type Bridge struct {
	sess    *session.Session
	limiter *rate.Limiter
}

// ErrRegistrationRejected is returned when the bridge rejects registration,
// most commonly because a different PIN is already on file for LocalUUID.
type ErrRegistrationRejected struct {
	Code zehnder.ResultCode
}

func (e *ErrRegistrationRejected) Error() string {
	return fmt.Sprintf("bridge: registration rejected: %s", e.Code)
}

// New builds a Bridge from cfg. It does not connect; call Connect.
func New(cfg Config) (*Bridge, error) {
	local, err := parseOrGenerateUUID(cfg.LocalUUID)
	if err != nil {
		return nil, err
	}
	target, err := parseUUID(cfg.BridgeUUID)
	if err != nil {
		return nil, fmt.Errorf("bridge: bad bridge uuid: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sess := session.New(session.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		LocalUUID:     local,
		BridgeUUID:    target,
		DeviceName:    cfg.DeviceName,
		PIN:           cfg.PIN,
		AutoReconnect: cfg.AutoReconnect,
		Logger:        logger,
		OnAlarm:       alarmAdapter(cfg.OnAlarm),
		OnNodeChange:  cfg.OnNodeChange,

		RMIRetries:        cfg.RMIRetries,
		RMIRetryBaseDelay: cfg.RMIRetryBaseDelay,
		SensorHoldDelay:   cfg.SensorHoldDelay,
	})

	var limiter *rate.Limiter
	if cfg.RMIRate > 0 {
		burst := cfg.RMIBurst
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RMIRate), burst)
	}

	return &Bridge{sess: sess, limiter: limiter}, nil
}

// Connect dials the bridge, sends a registration request for LocalUUID and
// PIN, and starts a session. A rejected registration is returned as
// *ErrRegistrationRejected rather than a generic session error.
func (b *Bridge) Connect(ctx context.Context) error {
	err := b.sess.Connect(ctx)
	if gwErr, ok := err.(*zehnder.GatewayError); ok && gwErr.Operation == zehnder.RegisterAppRequestType {
		return &ErrRegistrationRejected{Code: gwErr.Code}
	}
	return err
}

// Disconnect closes the session cleanly.
func (b *Bridge) Disconnect(ctx context.Context) error {
	return b.sess.Disconnect(ctx)
}

// Session exposes the underlying session, for callers that need Subscribe/
// Unsubscribe or raw RMI access this façade doesn't wrap.
func (b *Bridge) Session() *session.Session {
	return b.sess
}

// rmi runs one RMI request against NodeID, applying the rate limiter (if
// configured) ahead of the call.
func (b *Bridge) rmi(ctx context.Context, request []byte) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return b.sess.RMI(ctx, NodeID, request)
}

func (b *Bridge) getProperty(ctx context.Context, unit rmi.Unit, subunit rmi.Subunit, prop byte, typ rmi.ValueType) (any, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return b.sess.GetProperty(ctx, NodeID, unit, subunit, prop, typ)
}

func (b *Bridge) setProperty(ctx context.Context, unit rmi.Unit, subunit rmi.Subunit, prop byte, value int64, typ rmi.ValueType) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return b.sess.SetProperty(ctx, NodeID, unit, subunit, prop, value, typ)
}

// Subscribe streams decoded PDO values for pdid to consumer.
func (b *Bridge) Subscribe(ctx context.Context, pdid uint32, typ rmi.ValueType, consumer pdo.Consumer, dedup bool) error {
	return b.sess.Subscribe(ctx, pdid, typ, consumer, dedup)
}

// Unsubscribe cancels a pdid subscription previously installed with Subscribe.
func (b *Bridge) Unsubscribe(ctx context.Context, pdid uint32) error {
	return b.sess.Unsubscribe(ctx, pdid)
}

func parseUUID(s string) ([frame.UUIDSize]byte, error) {
	var out [frame.UUIDSize]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != frame.UUIDSize {
		return out, fmt.Errorf("bridge: uuid must be %d bytes, got %d", frame.UUIDSize, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseOrGenerateUUID(s string) ([frame.UUIDSize]byte, error) {
	if s == "" {
		var out [frame.UUIDSize]byte
		if _, err := rand.Read(out[:]); err != nil {
			return out, err
		}
		return out, nil
	}
	return parseUUID(s)
}

func alarmAdapter(fn func(nodeID uint32, errors map[int]string)) func(zehnder.CnAlarmNotification) {
	if fn == nil {
		return nil
	}
	return func(note zehnder.CnAlarmNotification) {
		fn(note.NodeID, DecodeAlarm(note))
	}
}
