package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iwanhae/chanline/chat"
)

var (
	ioTimeout       time.Duration
	shutdownTimeout time.Duration
	maxPerIP        int
	sshAddr         string
	hostKeyPath     string
	archivePath     string
	historyLimit    int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "chanline <port>",
		Short:        "A line-based multi-channel chat server",
		Long:         "A line-based multi-channel chat server. Clients join channels, post messages and poll the recent history over TCP.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.Flags().DurationVar(&ioTimeout, "io-timeout", 30*time.Second, "timeout for each read and write on a client connection")
	rootCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "how long to wait for connection handlers on shutdown")
	rootCmd.Flags().IntVar(&maxPerIP, "max-per-ip", 0, "max simultaneous connections per IP (0 = unlimited)")
	rootCmd.Flags().StringVar(&sshAddr, "ssh-addr", "", "also serve the line protocol over SSH on this address (e.g. :2222)")
	rootCmd.Flags().StringVar(&hostKeyPath, "host-key", "", "path to SSH host private key (generated when empty)")
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive", "", "path to SQLite message archive (disabled when empty)")

	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <channel>",
		Short: "Print archived messages of a channel",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", chat.MaxHistory, "number of messages to print")
	return cmd
}

// parsePort accepts a decimal TCP port in 1..65535.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: out of range", port)
	}
	return port, nil
}

func openStore(path string) (chat.MessageStore, error) {
	if path == "" {
		return chat.NewNullMessageStore(), nil
	}
	s, err := chat.NewSQLiteMessageStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	port, err := parsePort(args[0])
	if err != nil {
		return err
	}

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quitCh)

	store, err := openStore(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open message archive: %w", err)
	}
	defer store.Close()

	cfg := chat.DefaultConfig()
	cfg.IOTimeout = ioTimeout
	cfg.ShutdownTimeout = shutdownTimeout
	cfg.MaxPerIP = maxPerIP
	cfg.HostKeyPath = hostKeyPath
	server := chat.NewChatServer(cfg, store)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	var sshLn net.Listener
	if sshAddr != "" {
		sshLn, err = net.Listen("tcp", sshAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", sshAddr, err)
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Serve(ln)
	}()
	if sshLn != nil {
		go func() {
			errCh <- server.ServeSSH(sshLn)
		}()
	}

	var serveErr error
	select {
	case sig := <-quitCh:
		log.Printf("received signal: %v", sig)
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Printf("server error: %v", serveErr)
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown incomplete: %v", err)
	}
	log.Println("server shutdown complete")
	return serveErr
}

func runHistory(cmd *cobra.Command, args []string) error {
	if archivePath == "" {
		return fmt.Errorf("--archive is required")
	}
	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("failed to open message archive: %w", err)
	}
	store, err := openStore(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open message archive: %w", err)
	}
	defer store.Close()

	msgs, err := store.GetMessages(args[0], 0, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, msg := range msgs {
		fmt.Fprintf(out, "%s %s: %s\n", msg.Time.Format(time.RFC3339), msg.Nick, msg.Text)
	}
	return nil
}
