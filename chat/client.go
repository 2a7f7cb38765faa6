package chat

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/iwanhae/chanline/linewire"
)

// Client runs the command loop of one connection. It owns its Conn; the
// server only closes it from outside to force a shutdown.
type Client struct {
	server *ChatServer
	conn   *linewire.Conn
	id     string
	ip     string
	remote string
}

func newClient(server *ChatServer, conn *linewire.Conn, id, ip, remote string) *Client {
	return &Client{
		server: server,
		conn:   conn,
		id:     id,
		ip:     ip,
		remote: remote,
	}
}

// Serve reads and answers commands until a transport error occurs or the
// server stops. The returned error is nil only when the loop ended because
// of the stop flag.
func (c *Client) Serve() error {
	timeout := c.server.cfg.IOTimeout
	for !c.server.Stopping() {
		line, err := c.conn.ReadLine(timeout)
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.handleLine(line); err != nil {
			return err
		}
	}
	return nil
}

// handleLine answers one command. Only transport errors are returned.
func (c *Client) handleLine(line string) error {
	cmd := parseCommand(line)
	if reason := cmd.validate(); reason != "" {
		return c.send(errorLine(reason))
	}

	ch, err := c.server.Registry.GetOrCreate(cmd.channel, cmd.createsChannel())
	if err != nil {
		return c.send(errorReply(err))
	}

	switch cmd.action {
	case actionJoin:
		return c.handleJoin(ch, cmd)
	case actionExit:
		return c.handleExit(ch, cmd)
	case actionSend:
		return c.handleSend(ch, cmd)
	case actionRead:
		return c.handleRead(ch, cmd)
	default:
		return c.send(errorLine(reasonUnknownCommand))
	}
}

func (c *Client) handleJoin(ch *Channel, cmd command) error {
	if err := ch.Join(cmd.nick); err != nil {
		return c.send(errorReply(err))
	}
	return c.send(replyOK)
}

func (c *Client) handleExit(ch *Channel, cmd command) error {
	if err := ch.Leave(cmd.nick); err != nil {
		return c.send(errorReply(err))
	}
	return c.send(replyOK)
}

func (c *Client) handleSend(ch *Channel, cmd command) error {
	msg, err := ch.Post(cmd.nick, cmd.text)
	if err != nil {
		return c.send(errorReply(err))
	}
	c.server.archive(ch.Name(), msg, c.ip)
	return c.send(replyOK)
}

func (c *Client) handleRead(ch *Channel, cmd command) error {
	msgs, err := ch.Snapshot(cmd.nick)
	if err != nil {
		return c.send(errorReply(err))
	}
	if err := c.send(replyOK + " " + strconv.Itoa(len(msgs))); err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := c.send(fmt.Sprintf("%s: %s", msg.Nick, msg.Text)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(line string) error {
	return c.conn.WriteLine(line, c.server.cfg.IOTimeout)
}

// Close aborts any blocked read or write.
func (c *Client) Close() error {
	return c.conn.Close()
}

// logExit reports why the command loop ended.
func (c *Client) logExit(err error) {
	switch {
	case err == nil || c.server.Stopping():
		log.Printf("[%s] %s closed by shutdown", c.id, c.remote)
	case errors.Is(err, linewire.ErrConnectionClosed):
		log.Printf("[%s] %s disconnected", c.id, c.remote)
	case errors.Is(err, linewire.ErrTimeout):
		log.Printf("[%s] %s timed out", c.id, c.remote)
	case errors.Is(err, linewire.ErrLineTooLong):
		log.Printf("[%s] %s sent a line longer than %d bytes", c.id, c.remote, linewire.MaxLineLength)
	default:
		log.Printf("[%s] %s connection error: %v", c.id, c.remote, err)
	}
}
