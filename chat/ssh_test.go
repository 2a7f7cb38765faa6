package chat

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

func TestSSHSessionSpeaksLineProtocol(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewChatServer(DefaultConfig(), nil)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeSSH(ln) }()

	client, err := gossh.Dial("tcp", ln.Addr().String(), &gossh.ClientConfig{
		User:            "alice",
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	})
	require.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	require.NoError(t, err)
	stdout, err := sess.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, sess.Shell())

	lines := make(chan string, 16)
	go func() {
		r := bufio.NewReader(stdout)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimRight(line, "\r\n")
		}
	}()
	expect := func(want string) {
		t.Helper()
		select {
		case got, ok := <-lines:
			require.True(t, ok, "session closed while waiting for %q", want)
			assert.Equal(t, want, got)
		case <-time.After(messageTimeout):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	_, err = stdin.Write([]byte("join room alice\r\nsend room alice over ssh\nread room alice\n"))
	require.NoError(t, err)
	expect("OK")
	expect("OK")
	expect("OK 1")
	expect("alice: over ssh")

	waitFor(t, func() bool { return server.ConnectionCount() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.Equal(t, 0, server.ConnectionCount())

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ServeSSH did not return")
	}
}
