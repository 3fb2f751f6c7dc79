package remote

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// reply is what the mock server answers to one exec request.
type reply struct {
	stdout string
	stderr string
	status uint32
}

// mockSSHServer accepts one public key and answers exec requests from a
// table. "scp -qt" requests are handled as a minimal scp sink whose
// uploads are recorded.
type mockSSHServer struct {
	t        *testing.T
	listener net.Listener
	hostKey  ssh.Signer
	config   *ssh.ServerConfig

	mu       sync.Mutex
	replies  map[string]reply
	commands []string
	uploads  map[string]string
}

func generateSigner(t *testing.T) (ed25519.PrivateKey, ssh.Signer) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	return priv, signer
}

// writePrivateKey writes priv in OpenSSH format to path with mode 0600.
func writePrivateKey(t *testing.T, priv ed25519.PrivateKey, path string) {
	t.Helper()
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
}

func startMockSSHServer(t *testing.T, authorizedKey ssh.PublicKey) *mockSSHServer {
	t.Helper()
	_, hostKey := generateSigner(t)

	m := &mockSSHServer{
		t:       t,
		hostKey: hostKey,
		replies: make(map[string]reply),
		uploads: make(map[string]string),
	}
	m.config = &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorizedKey.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("authentication failed")
		},
	}
	m.config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	m.listener = listener
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go m.handleConn(conn)
		}
	}()
	return m
}

func (m *mockSSHServer) on(cmd string, r reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[cmd] = r
}

func (m *mockSSHServer) target(user string) Target {
	host, port, _ := net.SplitHostPort(m.listener.Addr().String())
	return Target{Alias: "mock", Host: host, Port: port, User: user}
}

func (m *mockSSHServer) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *mockSSHServer) upload(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.uploads[path]
	return content, ok
}

func (m *mockSSHServer) handleConn(conn net.Conn) {
	defer conn.Close()
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, m.config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go m.handleSession(channel, requests)
	}
}

func (m *mockSSHServer) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for req := range requests {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)

		m.mu.Lock()
		m.commands = append(m.commands, payload.Command)
		r, ok := m.replies[payload.Command]
		m.mu.Unlock()

		var status uint32
		switch {
		case strings.HasPrefix(payload.Command, "scp -qt "):
			status = m.scpSink(channel, payload.Command)
		case ok:
			io.WriteString(channel, r.stdout)
			io.WriteString(channel.Stderr(), r.stderr)
			status = r.status
		default:
			fmt.Fprintf(channel.Stderr(), "bash: %s: command not found\n", payload.Command)
			status = 127
		}
		channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

// scpSink receives a single file. It acknowledges before the header, after
// it, and after the data.
func (m *mockSSHServer) scpSink(channel ssh.Channel, command string) uint32 {
	dest := strings.Trim(strings.TrimPrefix(command, "scp -qt "), `"'`)
	r := bufio.NewReader(channel)

	channel.Write([]byte{0})
	header, err := r.ReadString('\n')
	if err != nil {
		return 1
	}
	fields := strings.Fields(header)
	if len(fields) != 3 || !strings.HasPrefix(fields[0], "C") {
		return 1
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil {
		return 1
	}
	channel.Write([]byte{0})

	data := make([]byte, size+1)
	if _, err := io.ReadFull(r, data); err != nil {
		return 1
	}
	channel.Write([]byte{0})

	m.mu.Lock()
	m.uploads[dest] = string(data[:size])
	m.mu.Unlock()
	return 0
}
