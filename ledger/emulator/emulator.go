// Package emulator is an in-process software implementation of the NEO N3
// Ledger app. It answers the same APDUs as the device and signs with keys
// derived from a master key, so the client can be exercised without
// hardware.
//
// Key derivation is deterministic but is not BIP32/SLIP-10: the key for a
// path is HMAC-SHA256(master scalar, path bytes) reduced into [1, N-1]. Public
// keys therefore differ from a real device seeded with the same secret.
package emulator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/anchorageoss/neo-ledgerclient/crypto"
	"github.com/anchorageoss/neo-ledgerclient/keys"
	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// AppName is what GET_APP_NAME returns
const AppName = "NEO3"

var ErrClosed = errors.New("emulator is closed")

// signSession is the SIGN_TX state carried between chunks
type signSession struct {
	path  ledger.Path
	magic uint32
	next  byte
	tx    []byte
}

// Emulator implements ledger.Transport
type Emulator struct {
	mu      sync.Mutex
	master  *ecdsa.PrivateKey
	version ledger.Version
	logger  *zap.Logger

	reject          bool
	contractScripts bool
	// decisions is non-nil in manual mode; approval requests block on it
	decisions chan bool
	// done is closed by Close and releases a pending approval
	done    chan struct{}
	session *signSession
	closed  bool
}

// reply is the answer to one APDU. A reply with confirm set is only sent
// once the user approves, otherwise the device answers SWDeny.
type reply struct {
	data    []byte
	sw      uint16
	confirm bool
}

var _ ledger.Transport = (*Emulator)(nil)

// Option configures an Emulator
type Option func(*Emulator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithVersion sets the version GET_VERSION reports
func WithVersion(v ledger.Version) Option {
	return func(e *Emulator) {
		e.version = v
	}
}

// WithRejection makes the emulator deny every request that needs approval
func WithRejection() Option {
	return func(e *Emulator) {
		e.reject = true
	}
}

// WithContractScripts lets the emulator sign scripts other than NEO/GAS
// transfers and votes, like the app's "contract scripts" setting. Without
// it such transactions are refused before any prompt.
func WithContractScripts() Option {
	return func(e *Emulator) {
		e.contractScripts = true
	}
}

// WithManualApproval makes approval requests wait for Approve or Reject,
// the way a device waits for its buttons.
func WithManualApproval() Option {
	return func(e *Emulator) {
		e.decisions = make(chan bool)
	}
}

// New creates an emulator seeded with master
func New(master *ecdsa.PrivateKey, opts ...Option) *Emulator {
	e := &Emulator{
		master:  master,
		version: ledger.Version{Major: 1, Minor: 0, Patch: 0},
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromProvider loads the master key from p
func NewFromProvider(ctx context.Context, p keys.KeyProvider, opts ...Option) (*Emulator, error) {
	master, err := p.GetPrivateKey(ctx)
	if err != nil {
		return nil, err
	}
	return New(master, opts...), nil
}

// DeriveKey returns the signing key for path
func (e *Emulator) DeriveKey(path ledger.Path) (*ecdsa.PrivateKey, error) {
	mac := hmac.New(sha256.New, e.master.D.FillBytes(make([]byte, 32)))
	mac.Write(path.Bytes())
	n := elliptic.P256().Params().N
	d := new(big.Int).SetBytes(mac.Sum(nil))
	d.Mod(d, new(big.Int).Sub(n, big.NewInt(1)))
	d.Add(d, big.NewInt(1))
	return keys.NewPrivateKey(d.FillBytes(make([]byte, 32)))
}

// SetReject switches the approval policy at runtime
func (e *Emulator) SetReject(reject bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reject = reject
}

// Approve answers a pending request in manual mode
func (e *Emulator) Approve(ctx context.Context) error {
	return e.decide(ctx, true)
}

// Reject denies a pending request in manual mode
func (e *Emulator) Reject(ctx context.Context) error {
	return e.decide(ctx, false)
}

func (e *Emulator) decide(ctx context.Context, approve bool) error {
	if e.decisions == nil {
		return errors.New("emulator is not in manual approval mode")
	}
	select {
	case e.decisions <- approve:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Confirmer returns a ledger.Confirmer that approves through Approve
func (e *Emulator) Confirmer() ledger.Confirmer {
	return ledger.ConfirmerFunc(e.Approve)
}

// Close implements ledger.Transport. A request waiting for approval fails
// with ErrClosed.
func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
	e.session = nil
	return nil
}

// Exchange implements ledger.Transport. Protocol errors are reported as
// status words; only a closed emulator or a cancelled context yields an
// error.
func (e *Emulator) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	r, ins, err := e.dispatch(ctx, apdu)
	if err != nil {
		return nil, err
	}
	// e.mu is released before waiting for the user
	if r.confirm {
		ok, err := e.approve(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			r = reply{sw: ledger.SWDeny}
		}
	}
	if r.sw != ledger.SWOK {
		e.logger.Debug("emulator refused apdu",
			zap.Uint8("ins", ins),
			zap.String("status", ledger.StatusText(r.sw)))
		r.data = nil
	}
	return ledger.Response(r.data, r.sw), nil
}

func (e *Emulator) dispatch(ctx context.Context, apdu []byte) (reply, byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return reply{}, 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return reply{}, 0, err
	}

	cla, cmd, err := ledger.ParseCommand(apdu)
	if err != nil {
		return reply{sw: ledger.SWWrongDataLength}, 0, nil
	}
	if cla != ledger.CLA {
		return reply{sw: ledger.SWClaNotSupported}, cmd.Ins, nil
	}

	switch cmd.Ins {
	case ledger.InsGetAppName:
		return reply{data: []byte(AppName), sw: ledger.SWOK}, cmd.Ins, nil
	case ledger.InsGetVersion:
		return reply{data: []byte{e.version.Major, e.version.Minor, e.version.Patch}, sw: ledger.SWOK}, cmd.Ins, nil
	case ledger.InsGetPublicKey:
		return e.getPublicKey(cmd), cmd.Ins, nil
	case ledger.InsSignTx:
		return e.signTx(cmd), cmd.Ins, nil
	default:
		return reply{sw: ledger.SWInsNotSupported}, cmd.Ins, nil
	}
}

// approve resolves a request that needs the user's consent. It must be
// called without e.mu held.
func (e *Emulator) approve(ctx context.Context) (bool, error) {
	e.mu.Lock()
	reject, closed := e.reject, e.closed
	e.mu.Unlock()
	if closed {
		return false, ErrClosed
	}
	if reject {
		return false, nil
	}
	if e.decisions == nil {
		return true, nil
	}
	select {
	case ok := <-e.decisions:
		return ok, nil
	case <-e.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (e *Emulator) getPublicKey(cmd ledger.Command) reply {
	if cmd.P1 > ledger.P1Display || cmd.P2 != 0 {
		return reply{sw: ledger.SWWrongP1P2}
	}
	path, err := ledger.PathFromBytes(cmd.Data)
	if err != nil {
		return reply{sw: ledger.SWWrongDataLength}
	}
	key, err := e.DeriveKey(path)
	if err != nil {
		return reply{sw: ledger.SWBadState}
	}
	return reply{
		data:    crypto.MarshalPublicKey(&key.PublicKey),
		sw:      ledger.SWOK,
		confirm: cmd.P1 == ledger.P1Display,
	}
}

func (e *Emulator) signTx(cmd ledger.Command) reply {
	if cmd.P2 != ledger.P2More && cmd.P2 != ledger.P2Last {
		e.session = nil
		return reply{sw: ledger.SWWrongP1P2}
	}

	switch {
	case cmd.P1 == 0:
		path, err := ledger.PathFromBytes(cmd.Data)
		if err != nil {
			e.session = nil
			return reply{sw: ledger.SWWrongDataLength}
		}
		if cmd.P2 != ledger.P2More {
			e.session = nil
			return reply{sw: ledger.SWWrongP1P2}
		}
		e.session = &signSession{path: path, next: 1}
		return reply{sw: ledger.SWOK}

	case e.session == nil || cmd.P1 != e.session.next:
		e.session = nil
		return reply{sw: ledger.SWBadState}

	case cmd.P1 == 1:
		if len(cmd.Data) != 4 {
			e.session = nil
			return reply{sw: ledger.SWWrongDataLength}
		}
		if cmd.P2 != ledger.P2More {
			e.session = nil
			return reply{sw: ledger.SWWrongP1P2}
		}
		e.session.magic = binary.LittleEndian.Uint32(cmd.Data)
		e.session.next++
		return reply{sw: ledger.SWOK}
	}

	s := e.session
	s.tx = append(s.tx, cmd.Data...)
	if len(s.tx) > neo.MaxTransactionSize {
		e.session = nil
		return reply{sw: ledger.SWWrongTxLength}
	}
	if cmd.P2 == ledger.P2More {
		s.next++
		return reply{sw: ledger.SWOK}
	}

	e.session = nil
	tx, err := neo.DecodeUnsigned(s.tx)
	if err == nil {
		err = neo.Validate(tx)
	}
	if err != nil {
		e.logger.Debug("emulator rejected transaction", zap.Error(err))
		return reply{sw: ledger.SWTxParsingFail}
	}
	info := neo.ClassifyScript(tx.Script)
	if info.Kind == neo.ScriptArbitrary && !e.contractScripts {
		e.logger.Debug("emulator refused contract script, contract scripts are disabled")
		return reply{sw: ledger.SWDeny}
	}

	key, err := e.DeriveKey(s.path)
	if err != nil {
		return reply{sw: ledger.SWBadState}
	}
	sig, err := crypto.SignWithECDSA(key, neo.SignedMessage(s.magic, s.tx))
	if err != nil {
		return reply{sw: ledger.SWSignatureFail}
	}
	e.logger.Info("emulator signed transaction",
		zap.String("path", s.path.String()),
		zap.Uint32("magic", s.magic),
		zap.Stringer("script", info.Kind))
	return reply{data: sig, sw: ledger.SWOK, confirm: true}
}
