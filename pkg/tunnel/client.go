package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/logging"
)

// TunnelStatus represents the current state of a tunnel.
type TunnelStatus string

const (
	StatusDisconnected TunnelStatus = "disconnected"
	StatusConnecting   TunnelStatus = "connecting"
	StatusConnected    TunnelStatus = "connected"
	StatusClosed       TunnelStatus = "closed"
)

// DefaultDialTimeout bounds the TCP dial and SSH handshake with the bastion.
const DefaultDialTimeout = 10 * time.Second

// Config describes the bastion to dial and the endpoint to expose locally.
type Config struct {
	BastionHost string
	BastionPort int
	BastionUser string
	// KeyPath is the private key used to authenticate with the bastion.
	KeyPath       string
	KeyPassphrase string
	// KnownHostsPath verifies the bastion host key. Required unless
	// InsecureIgnoreHostKey is set.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool

	RemoteHost string
	RemotePort int

	DialTimeout time.Duration
}

// Validate checks that every field needed to open a tunnel is present.
func (c Config) Validate() error {
	switch {
	case c.BastionHost == "":
		return errors.New("bastion host is required")
	case c.BastionPort <= 0 || c.BastionPort > 65535:
		return fmt.Errorf("bastion port %d is out of range", c.BastionPort)
	case c.BastionUser == "":
		return errors.New("bastion user is required")
	case c.KeyPath == "":
		return errors.New("bastion private key path is required")
	case c.KnownHostsPath == "" && !c.InsecureIgnoreHostKey:
		return errors.New("bastion known_hosts path is required unless host key checking is disabled")
	case c.RemoteHost == "":
		return errors.New("remote database host is required")
	case c.RemotePort <= 0 || c.RemotePort > 65535:
		return fmt.Errorf("remote database port %d is out of range", c.RemotePort)
	}
	return nil
}

func (c Config) bastionAddr() string {
	return net.JoinHostPort(c.BastionHost, strconv.Itoa(c.BastionPort))
}

func (c Config) remoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// Tunnel forwards an ephemeral local port to a remote endpoint through an SSH
// bastion. It lives for a single operation and must be closed by its owner.
type Tunnel struct {
	cfg      Config
	client   *ssh.Client
	listener net.Listener
	logger   *zap.Logger

	mu     sync.Mutex
	status TunnelStatus
	conns  map[net.Conn]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open dials the bastion, then binds 127.0.0.1:0 and starts forwarding
// accepted connections to the remote endpoint. Every failure is reported as
// apperrors.ErrConnectivity and leaves nothing open. Neither the bastion nor
// the remote endpoint is ever written to the log.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Tunnel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid tunnel config: %w", apperrors.ErrConnectivity, err)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	t := &Tunnel{
		cfg:    cfg,
		logger: logger.Named("tunnel"),
		status: StatusConnecting,
		conns:  make(map[net.Conn]struct{}),
	}

	client, err := dialBastion(ctx, cfg)
	if err != nil {
		t.setStatus(StatusDisconnected)
		t.logger.Warn("Failed to reach bastion",
			zap.String("status", string(StatusDisconnected)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: ssh to bastion: %w", apperrors.ErrConnectivity, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		t.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("%w: bind local port: %w", apperrors.ErrConnectivity, err)
	}

	t.client = client
	t.listener = listener
	t.setStatus(StatusConnected)

	t.wg.Add(1)
	go t.acceptLoop()

	t.logger.Debug("Tunnel opened",
		zap.String("status", string(StatusConnected)),
		zap.Int("local_port", t.LocalPort()))
	return t, nil
}

func dialBastion(ctx context.Context, cfg Config) (*ssh.Client, error) {
	signer, err := loadSigner(cfg.KeyPath, cfg.KeyPassphrase)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.BastionUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.DialTimeout,
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.bastionAddr())
	if err != nil {
		return nil, err
	}

	// The handshake ignores ctx, so bound it with a deadline on the socket.
	deadline := time.Now().Add(cfg.DialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, cfg.bastionAddr(), sshCfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", withoutPath(err))
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", withoutPath(err))
		}
		return cb, nil
	}
	return ssh.InsecureIgnoreHostKey(), nil
}

// withoutPath drops the file name from filesystem errors; key and known_hosts
// locations stay out of error text.
func withoutPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

// LocalAddr is the address clients connect to instead of the remote endpoint.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

// LocalPort is the ephemeral port bound on 127.0.0.1.
func (t *Tunnel) LocalPort() int {
	return t.listener.Addr().(*net.TCPAddr).Port
}

// Status returns the current tunnel status.
func (t *Tunnel) Status() TunnelStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tunnel) setStatus(s TunnelStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.logger.Warn("Tunnel accept failed", zap.String("error", logging.SanitizeError(err)))
			}
			return
		}
		if !t.track(local) {
			_ = local.Close()
			return
		}

		t.wg.Add(1)
		go t.forward(local)
	}
}

// track registers conn for teardown; false means the tunnel is already closing.
func (t *Tunnel) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusClosed {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *Tunnel) untrack(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer t.untrack(local)
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.cfg.remoteAddr())
	if err != nil {
		t.logger.Warn("Bastion could not reach remote endpoint",
			zap.String("status", string(t.Status())),
			zap.String("error", logging.SanitizeError(err)))
		return
	}
	if !t.track(remote) {
		_ = remote.Close()
		return
	}
	defer t.untrack(remote)
	defer remote.Close()

	done := make(chan struct{}, 2)
	pipe := func(dst, src net.Conn) {
		defer t.wg.Done()
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}
	t.wg.Add(2)
	go pipe(remote, local)
	go pipe(local, remote)

	// Either side finishing ends the forward; the deferred closes unblock the other copy.
	<-done
}

// Close stops accepting, drops forwarded connections and closes the SSH
// client. It is idempotent.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.status = StatusClosed
		conns := make([]net.Conn, 0, len(t.conns))
		for c := range t.conns {
			conns = append(conns, c)
		}
		t.mu.Unlock()

		var errs []error
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
		for _, c := range conns {
			_ = c.Close()
		}
		if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
			errs = append(errs, fmt.Errorf("close ssh client: %w", err))
		}

		t.wg.Wait()
		t.closeErr = errors.Join(errs...)
		t.logger.Debug("Tunnel closed", zap.String("status", string(StatusClosed)))
	})
	return t.closeErr
}
