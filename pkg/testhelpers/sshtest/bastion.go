// Package sshtest runs an in-process SSH bastion that serves direct-tcpip
// forwarding, so tunnel code can be tested without a real jump host.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Bastion is a running test SSH server.
type Bastion struct {
	Host           string
	Port           int
	User           string
	KeyPath        string // authorized client key
	KnownHostsPath string // pins HostKey for Host:Port
	HostKey        ssh.PublicKey

	listener   net.Listener
	wg         sync.WaitGroup
	handshakes atomic.Int64
	active     atomic.Int64
}

// Start generates a host key and an authorized client key and starts serving.
// The server is stopped when the test ends.
func Start(t testing.TB) *Bastion {
	t.Helper()

	hostKey := NewHostKey(t)
	keyPath, clientPub := WriteClientKey(t)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(clientPub.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized key")
		},
	}
	cfg.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().(*net.TCPAddr)

	b := &Bastion{
		Host:     "127.0.0.1",
		Port:     addr.Port,
		User:     "ubuntu",
		KeyPath:  keyPath,
		HostKey:  hostKey.PublicKey(),
		listener: listener,
	}
	b.KnownHostsPath = WriteKnownHosts(t, b.Addr(), b.HostKey)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go b.serve(conn, cfg)
		}
	}()

	t.Cleanup(func() {
		_ = listener.Close()
		b.wg.Wait()
	})
	return b
}

// Addr is host:port of the bastion.
func (b *Bastion) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Handshakes is the number of clients that completed authentication.
func (b *Bastion) Handshakes() int {
	return int(b.handshakes.Load())
}

// ActiveConns is the number of authenticated clients still connected.
func (b *Bastion) ActiveConns() int {
	return int(b.active.Load())
}

func (b *Bastion) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	b.handshakes.Add(1)
	b.active.Add(1)
	defer b.active.Add(-1)
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "direct-tcpip" {
			_ = newChan.Reject(ssh.UnknownChannelType, "only direct-tcpip")
			continue
		}
		var payload struct {
			DestAddr string
			DestPort uint32
			OrigAddr string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(newChan.ExtraData(), &payload); err != nil {
			_ = newChan.Reject(ssh.ConnectionFailed, "bad payload")
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(payload.DestAddr, strconv.Itoa(int(payload.DestPort))))
		if err != nil {
			_ = newChan.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := newChan.Accept()
		if err != nil {
			_ = target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			defer ch.Close()
			defer target.Close()
			go func() { _, _ = io.Copy(target, ch) }()
			_, _ = io.Copy(ch, target)
		}()
	}
}

// NewHostKey returns a fresh ed25519 signer.
func NewHostKey(t testing.TB) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	return signer
}

// WriteClientKey writes an OpenSSH private key to a temp file and returns its
// path and public half.
func WriteClientKey(t testing.TB) (string, ssh.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal client key: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write client key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("client public key: %v", err)
	}
	return path, sshPub
}

// WriteKnownHosts writes a known_hosts file pinning key for addr.
func WriteKnownHosts(t testing.TB, addr string, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, key)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	return path
}

// StartEcho starts a TCP server that echoes every byte back. It stands in
// for the database behind the bastion.
func StartEcho(t testing.TB) (string, int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()

	return "127.0.0.1", listener.Addr().(*net.TCPAddr).Port
}

// ClosedPort returns a local port nothing listens on.
func ClosedPort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}
